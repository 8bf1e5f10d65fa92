package server

import (
	"github.com/gin-gonic/gin"
	integrationdomain "github.com/railzwaylabs/billingcore/internal/integration/domain"
)

// ListIntegrations never returns secrets or credentials.
func (s *Server) ListIntegrations(c *gin.Context) {
	items, err := s.integrationSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, items, nil)
}

// @Summary      Create Integration
// @Description  Connect a payment provider. The webhook secret is returned only in this response.
// @Tags         integrations
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body integrationdomain.CreateIntegrationRequest true "Integration"
// @Success      201  {object}  DataResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /api/integrations [post]
func (s *Server) CreateIntegration(c *gin.Context) {
	var req integrationdomain.CreateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.integrationSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, created)
}

func (s *Server) UpdateIntegration(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req integrationdomain.UpdateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	updated, err := s.integrationSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, updated)
}
