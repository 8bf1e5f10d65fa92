package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Country is reference data shared by every organization. DiscountPercentage
// is the raw PPP discount before an organization's rules clamp it.
type Country struct {
	Code               string          `json:"code" gorm:"primaryKey;size:2"`
	Name               string          `json:"name" gorm:"not null"`
	Currency           string          `json:"currency" gorm:"size:3"`
	PPPFactor          decimal.Decimal `json:"ppp_factor" gorm:"type:decimal(10,4);not null;default:1"`
	DiscountPercentage int             `json:"discount_percentage" gorm:"not null;default:0"`
	IsActive           bool            `json:"is_active" gorm:"not null"`
}

func (Country) TableName() string {
	return "countries"
}

type Repository interface {
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Country, error)
	List(ctx context.Context, db *gorm.DB) ([]Country, error)
	// ExistingCodes returns the subset of codes present in the table.
	ExistingCodes(ctx context.Context, db *gorm.DB, codes []string) ([]string, error)
	Upsert(ctx context.Context, db *gorm.DB, country *Country) error
}
