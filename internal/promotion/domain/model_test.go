package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestDiscount(t *testing.T) {
	cases := []struct {
		name  string
		promo Promotion
		base  int64
		want  int64
	}{
		{"percentage", Promotion{Type: TypePercentage, Value: 10}, 1000, 100},
		{"percentage rounds half up", Promotion{Type: TypePercentage, Value: 15}, 999, 150},
		{"percentage rounds down", Promotion{Type: TypePercentage, Value: 33}, 100, 33},
		{"fixed", Promotion{Type: TypeFixed, Value: 250}, 1000, 250},
		{"fixed capped at base", Promotion{Type: TypeFixed, Value: 5000}, 1000, 1000},
		{"free trial", Promotion{Type: TypeFreeTrial, Value: 14}, 1000, 0},
		{"zero base", Promotion{Type: TypePercentage, Value: 50}, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.promo.Discount(tc.base))
		})
	}
}

func TestFreeTrialDays(t *testing.T) {
	assert.Equal(t, 14, (&Promotion{Type: TypeFreeTrial, Value: 14}).FreeTrialDays())
	assert.Zero(t, (&Promotion{Type: TypePercentage, Value: 14}).FreeTrialDays())
	var nilPromo *Promotion
	assert.Zero(t, nilPromo.FreeTrialDays())
}

func TestCheckEligibility(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	maxUses := int64(5)
	product := snowflake.ID(42)

	base := func() Promotion {
		return Promotion{
			Type: TypePercentage, Value: 10, IsActive: true,
			ValidFrom: now.Add(-24 * time.Hour), MaxUsesPerCustomer: 1,
		}
	}
	ok := Eligibility{Now: now, BasePrice: 1000, ProductID: product, CountryCode: "IN"}

	cases := []struct {
		name   string
		mutate func(*Promotion)
		elig   Eligibility
		want   error
	}{
		{"eligible", func(*Promotion) {}, ok, nil},
		{"inactive", func(p *Promotion) { p.IsActive = false }, ok, ErrPromotionInactive},
		{"not started", func(p *Promotion) { p.ValidFrom = now.Add(time.Hour) }, ok, ErrPromotionExpired},
		{"ended", func(p *Promotion) { p.ValidTo = &past }, ok, ErrPromotionExpired},
		{"global cap", func(p *Promotion) { p.MaxUses = &maxUses; p.CurrentUses = 5 }, ok, ErrPromotionExhausted},
		{"customer cap", func(*Promotion) {}, Eligibility{Now: now, BasePrice: 1000, CustomerKnown: true, CustomerUses: 1}, ErrPromotionExhausted},
		{"anonymous skips customer cap", func(*Promotion) {}, Eligibility{Now: now, BasePrice: 1000, CustomerUses: 3}, nil},
		{"min order", func(p *Promotion) { p.MinOrderValue = 2000 }, ok, ErrPromotionNotEligible},
		{"product", func(p *Promotion) { p.ApplicableProducts = []string{"7"} }, ok, ErrPromotionNotEligible},
		{"product match", func(p *Promotion) { p.ApplicableProducts = []string{product.String()} }, ok, nil},
		{"country", func(p *Promotion) { p.ApplicableCountries = []string{"BR"} }, ok, ErrPromotionNotEligible},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base()
			tc.mutate(&p)
			err := p.CheckEligibility(tc.elig)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
