package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	pricingdomain "github.com/railzwaylabs/billingcore/internal/pricing/domain"
)

// countryFromRequest prefers an explicit value, then the CDN geo headers.
func countryFromRequest(c *gin.Context, explicit string) string {
	for _, v := range []string{explicit, c.GetHeader("CF-IPCountry"), c.GetHeader("X-Country-Code")} {
		v = strings.ToUpper(strings.TrimSpace(v))
		// Cloudflare reports XX for unknown and T1 for Tor.
		if len(v) == 2 && v != "XX" && v != "T1" {
			return v
		}
	}
	return ""
}

// @Summary      Price quote
// @Description  Base price, PPP and promotion discounts for a plan
// @Tags         pricing
// @Produce      json
// @Security     ApiKeyAuth
// @Param        plan_id         query  string  true   "Plan ID"
// @Param        country_code    query  string  false  "ISO country code"
// @Param        promotion_code  query  string  false  "Promotion code"
// @Param        customer_id     query  string  false  "Customer ID"
// @Success      200  {object}  DataResponse
// @Router       /api/pricing/quote [get]
func (s *Server) GetPriceQuote(c *gin.Context) {
	orgID, err := orgcontext.RequireOrgID(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	planID, err := optionalQueryID(c, "plan_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if planID == 0 {
		AbortWithError(c, newValidationError("plan_id", "required", "plan_id is required"))
		return
	}
	customerID, err := optionalQueryID(c, "customer_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	quote, err := s.pricing.CalculatePrice(c.Request.Context(), pricingdomain.PriceRequest{
		OrgID:         orgID,
		PlanID:        planID,
		CountryCode:   countryFromRequest(c, c.Query("country_code")),
		PromotionCode: strings.TrimSpace(c.Query("promotion_code")),
		CustomerID:    customerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, quote)
}
