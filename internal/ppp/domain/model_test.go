package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampStaysWithinBounds(t *testing.T) {
	for minD := 0; minD <= 100; minD += 5 {
		for maxD := minD; maxD <= 100; maxD += 5 {
			rule := Rule{MinDiscount: minD, MaxDiscount: maxD}
			for raw := 0; raw <= 100; raw++ {
				got := rule.Clamp(raw)
				assert.GreaterOrEqual(t, got, minD)
				assert.LessOrEqual(t, got, maxD)
				if raw >= minD && raw <= maxD {
					assert.Equal(t, raw, got)
				}
			}
		}
	}
}

func TestSelectRule(t *testing.T) {
	rules := []Rule{
		{ID: 3, Countries: []string{"IN", "BR"}, Priority: 1, IsActive: true, MinDiscount: 10, MaxDiscount: 50},
		{ID: 2, Countries: []string{"IN"}, Priority: 5, IsActive: false, MinDiscount: 0, MaxDiscount: 5},
		{ID: 4, Countries: []string{"BR"}, Priority: 1, IsActive: true, MinDiscount: 0, MaxDiscount: 20},
		{ID: 1, Countries: []string{"BR"}, Priority: 1, IsActive: true, MinDiscount: 30, MaxDiscount: 40},
		{ID: 5, Countries: []string{"MX"}, Priority: 0, IsActive: true, MinDiscount: 0, MaxDiscount: 10},
		{ID: 6, Countries: []string{"MX"}, Priority: 2, IsActive: true, MinDiscount: 20, MaxDiscount: 30},
	}

	rule, ok := SelectRule(rules, "IN")
	assert.True(t, ok)
	assert.EqualValues(t, 3, rule.ID, "inactive rules are ignored")

	rule, ok = SelectRule(rules, "BR")
	assert.True(t, ok)
	assert.EqualValues(t, 1, rule.ID, "ties resolve to the lowest id")

	rule, ok = SelectRule(rules, "MX")
	assert.True(t, ok)
	assert.EqualValues(t, 6, rule.ID, "higher priority wins over a lower id")

	_, ok = SelectRule(rules, "DE")
	assert.False(t, ok)
}

func TestResolveDiscount(t *testing.T) {
	rules := []Rule{{ID: 1, Countries: []string{"IN"}, IsActive: true, MinDiscount: 10, MaxDiscount: 50}}

	assert.Equal(t, 50, ResolveDiscount(70, rules, "IN"))
	assert.Equal(t, 10, ResolveDiscount(5, rules, "IN"))
	assert.Equal(t, 70, ResolveDiscount(70, rules, "ID"))
	assert.Equal(t, 70, ResolveDiscount(70, nil, "IN"))
}
