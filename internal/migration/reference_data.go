package migration

import (
	"context"
	"fmt"

	countrydomain "github.com/railzwaylabs/billingcore/internal/country/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type countrySeed struct {
	code     string
	name     string
	currency string
	factor   string
	discount int
}

// Raw PPP discounts are indicative. Organizations clamp them with rules.
var countrySeeds = []countrySeed{
	{"US", "United States", "USD", "1.0000", 0},
	{"GB", "United Kingdom", "GBP", "0.9100", 0},
	{"DE", "Germany", "EUR", "0.8500", 0},
	{"FR", "France", "EUR", "0.8300", 0},
	{"CA", "Canada", "CAD", "0.8800", 0},
	{"AU", "Australia", "AUD", "0.9000", 0},
	{"JP", "Japan", "JPY", "0.7200", 15},
	{"SG", "Singapore", "SGD", "0.6900", 10},
	{"ES", "Spain", "EUR", "0.7000", 15},
	{"PL", "Poland", "PLN", "0.5200", 35},
	{"BR", "Brazil", "BRL", "0.4800", 45},
	{"MX", "Mexico", "MXN", "0.4900", 45},
	{"AR", "Argentina", "ARS", "0.3200", 60},
	{"TR", "Turkey", "TRY", "0.3100", 60},
	{"ZA", "South Africa", "ZAR", "0.4200", 50},
	{"NG", "Nigeria", "NGN", "0.2700", 70},
	{"IN", "India", "INR", "0.2600", 70},
	{"ID", "Indonesia", "IDR", "0.3300", 60},
	{"PH", "Philippines", "PHP", "0.3700", 55},
	{"VN", "Vietnam", "VND", "0.3000", 65},
	{"EG", "Egypt", "EGP", "0.2200", 75},
	{"PK", "Pakistan", "PKR", "0.2100", 75},
}

// seedReferenceData upserts the country table. Names, currencies and raw
// discounts are overwritten; is_active set by an operator is kept.
func seedReferenceData(ctx context.Context, db *gorm.DB) error {
	rows := make([]countrydomain.Country, 0, len(countrySeeds))
	for _, seed := range countrySeeds {
		rows = append(rows, countrydomain.Country{
			Code:               seed.code,
			Name:               seed.name,
			Currency:           seed.currency,
			PPPFactor:          decimal.RequireFromString(seed.factor),
			DiscountPercentage: seed.discount,
			IsActive:           true,
		})
	}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "currency", "ppp_factor", "discount_percentage"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seed countries: %w", err)
	}
	return nil
}
