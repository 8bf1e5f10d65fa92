package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinalPriceNeverNegative(t *testing.T) {
	prices := []int64{0, 1, 99, 1000, 49_999}
	discounts := []int64{0, 1, 50, 999, 1000, 1001, 100_000}

	for _, p := range prices {
		for _, d1 := range discounts {
			for _, d2 := range discounts {
				got := FinalPrice(p, d1, d2)
				assert.GreaterOrEqual(t, got, int64(0))
				want := p - d1 - d2
				if want < 0 {
					want = 0
				}
				assert.Equal(t, want, got, "P=%d D1=%d D2=%d", p, d1, d2)
			}
		}
	}
}

func TestDiscountAmount(t *testing.T) {
	q := PriceQuote{BasePrice: 1000, PPPDiscount: 700, PromotionDiscount: 500, FinalPrice: FinalPrice(1000, 700, 500)}
	assert.Equal(t, int64(0), q.FinalPrice)
	assert.Equal(t, int64(1000), q.DiscountAmount())
}
