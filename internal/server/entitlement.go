package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/railzwaylabs/billingcore/internal/entitlement/domain"
)

// @Summary      Check feature access
// @Tags         entitlements
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id    path  string  true  "Customer ID"
// @Param        slug  path  string  true  "Feature slug"
// @Success      200  {object}  DataResponse
// @Router       /api/customers/{id}/features/{slug} [get]
func (s *Server) CheckFeatureAccess(c *gin.Context) {
	customerID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	access, err := s.entitlementSvc.CheckFeatureAccess(c.Request.Context(), customerID, strings.TrimSpace(c.Param("slug")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, access)
}

func (s *Server) ListFeatures(c *gin.Context) {
	features, err := s.entitlementSvc.ListFeatures(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, features, nil)
}

func (s *Server) CreateFeature(c *gin.Context) {
	var req entitlementdomain.CreateFeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	feature, err := s.entitlementSvc.CreateFeature(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, feature)
}

func (s *Server) AttachFeatureToPlan(c *gin.Context) {
	planID, err := pathID(c, "plan_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	slug := strings.TrimSpace(c.Param("slug"))

	if err := s.entitlementSvc.AttachToPlan(c.Request.Context(), planID, slug); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"plan_id": planID.String(), "feature": slug})
}

func (s *Server) GrantEntitlement(c *gin.Context) {
	var req entitlementdomain.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entitlement, err := s.entitlementSvc.Grant(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, entitlement)
}
