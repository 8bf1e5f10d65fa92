package server

import (
	"github.com/gin-gonic/gin"
	promotiondomain "github.com/railzwaylabs/billingcore/internal/promotion/domain"
)

func (s *Server) ListPromotions(c *gin.Context) {
	promotions, err := s.promotionSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, promotions, nil)
}

// @Summary      Create Promotion
// @Tags         promotions
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body promotiondomain.CreatePromotionRequest true "Promotion"
// @Success      201  {object}  DataResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /api/promotions [post]
func (s *Server) CreatePromotion(c *gin.Context) {
	var req promotiondomain.CreatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	promotion, err := s.promotionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, promotion)
}

func (s *Server) GetPromotion(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	promotion, err := s.promotionSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, promotion)
}

func (s *Server) DeactivatePromotion(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.promotionSvc.Deactivate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"id": id.String(), "is_active": false})
}

// @Summary      Validate Promotion
// @Description  Check a code against a plan and customer without consuming a use
// @Tags         promotions
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body promotiondomain.ValidateRequest true "Validation"
// @Success      200  {object}  DataResponse
// @Router       /api/promotions/validate [post]
func (s *Server) ValidatePromotion(c *gin.Context) {
	var req promotiondomain.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CountryCode = countryFromRequest(c, req.CountryCode)

	resolution, err := s.promotionSvc.Validate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resolution)
}
