package server

import (
	"github.com/gin-gonic/gin"
	pppdomain "github.com/railzwaylabs/billingcore/internal/ppp/domain"
)

// @Summary      PPP discount preview
// @Tags         ppp
// @Produce      json
// @Security     ApiKeyAuth
// @Param        country_code  query  string  false  "ISO country code, defaults to the geo headers"
// @Success      200  {object}  DataResponse
// @Router       /api/ppp/discount [get]
func (s *Server) GetPPPDiscount(c *gin.Context) {
	country := countryFromRequest(c, c.Query("country_code"))
	if country == "" {
		AbortWithError(c, newValidationError("country_code", "required", "country_code is required"))
		return
	}

	discount, err := s.pppSvc.GetPPPDiscount(c.Request.Context(), country)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, discount)
}

func (s *Server) ListPPPRules(c *gin.Context) {
	rules, err := s.pppSvc.ListRules(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, rules, nil)
}

// @Summary      Create PPP rule
// @Tags         ppp
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body pppdomain.CreateRuleRequest true "Rule"
// @Success      201  {object}  DataResponse
// @Router       /api/ppp/rules [post]
func (s *Server) CreatePPPRule(c *gin.Context) {
	var req pppdomain.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rule, err := s.pppSvc.CreateRule(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, rule)
}

func (s *Server) GetPPPRule(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rule, err := s.pppSvc.GetRule(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, rule)
}

func (s *Server) UpdatePPPRule(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req pppdomain.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rule, err := s.pppSvc.UpdateRule(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, rule)
}

func (s *Server) DeletePPPRule(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.pppSvc.DeleteRule(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"id": id.String(), "deleted": true})
}
