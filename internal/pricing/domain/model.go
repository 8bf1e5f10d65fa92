package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	promotiondomain "github.com/railzwaylabs/billingcore/internal/promotion/domain"
)

// PriceRequest mirrors a quote or order request. A zero OrgID disables both
// discount sources.
type PriceRequest struct {
	OrgID         snowflake.ID
	PlanID        snowflake.ID
	CountryCode   string
	PromotionCode string
	CustomerID    snowflake.ID
}

type PriceQuote struct {
	PlanID            snowflake.ID `json:"plan_id"`
	Currency          string       `json:"currency"`
	CountryCode       string       `json:"country_code,omitempty"`
	BasePrice         int64        `json:"base_price"`
	PPPPercentage     int          `json:"ppp_percentage"`
	PPPDiscount       int64        `json:"ppp_discount"`
	PromotionDiscount int64        `json:"promotion_discount"`
	FinalPrice        int64        `json:"final_price"`
	PromotionCode     string       `json:"promotion_code,omitempty"`

	// Promotion is the resolved promotion backing PromotionDiscount.
	Promotion *promotiondomain.Promotion `json:"-"`
	ProductID snowflake.ID               `json:"-"`
}

// DiscountAmount is the total discount actually granted, which can be less
// than the sum of both discounts once the price floors at zero.
func (q PriceQuote) DiscountAmount() int64 {
	return q.BasePrice - q.FinalPrice
}

// FinalPrice floors the combined discount at zero.
func FinalPrice(base, pppDiscount, promotionDiscount int64) int64 {
	final := base - pppDiscount - promotionDiscount
	if final < 0 {
		return 0
	}
	return final
}

type Engine interface {
	CalculatePrice(ctx context.Context, req PriceRequest) (*PriceQuote, error)
}
