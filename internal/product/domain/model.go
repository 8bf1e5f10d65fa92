package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"gorm.io/gorm"
)

var ErrPlanNotFound = apperror.New(apperror.KindNotFound, "plan_not_found")

const (
	IntervalDay   = "day"
	IntervalWeek  = "week"
	IntervalMonth = "month"
	IntervalYear  = "year"
)

type Product struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID `json:"org_id" gorm:"not null;index"`
	Name        string       `json:"name" gorm:"not null"`
	Description string       `json:"description"`
	IsActive    bool         `json:"is_active" gorm:"not null"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// PricingPlan belongs to exactly one Product. Price is in minor units.
type PricingPlan struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	ProductID     snowflake.ID `json:"product_id" gorm:"not null;index"`
	Name          string       `json:"name" gorm:"not null"`
	Price         int64        `json:"price" gorm:"not null"`
	Currency      string       `json:"currency" gorm:"not null;size:3"`
	Interval      string       `json:"interval" gorm:"column:billing_interval;not null;default:'month'"`
	IntervalCount int          `json:"interval_count" gorm:"not null;default:1"`
	TrialDays     int          `json:"trial_days" gorm:"not null;default:0"`
	IsActive      bool         `json:"is_active" gorm:"not null"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (PricingPlan) TableName() string {
	return "pricing_plans"
}

// Plan is a PricingPlan joined with its owning product's organization.
type Plan struct {
	ID            snowflake.ID `json:"id"`
	ProductID     snowflake.ID `json:"product_id"`
	OrgID         snowflake.ID `json:"org_id"`
	Name          string       `json:"name"`
	Price         int64        `json:"price"`
	Currency      string       `json:"currency"`
	Interval      string       `json:"interval" gorm:"column:billing_interval"`
	IntervalCount int          `json:"interval_count"`
	TrialDays     int          `json:"trial_days"`
	IsActive      bool         `json:"is_active"`
}

// PeriodEnd returns the end of one billing period starting at start.
func (p Plan) PeriodEnd(start time.Time) time.Time {
	n := p.IntervalCount
	if n <= 0 {
		n = 1
	}
	switch p.Interval {
	case IntervalDay:
		return start.AddDate(0, 0, n)
	case IntervalWeek:
		return start.AddDate(0, 0, 7*n)
	case IntervalYear:
		return start.AddDate(n, 0, 0)
	default:
		return start.AddDate(0, n, 0)
	}
}

type Repository interface {
	InsertProduct(ctx context.Context, db *gorm.DB, product *Product) error
	InsertPlan(ctx context.Context, db *gorm.DB, plan *PricingPlan) error
	// FindPlan resolves a plan regardless of organization.
	FindPlan(ctx context.Context, db *gorm.DB, planID snowflake.ID) (*Plan, error)
	FindPlanForOrg(ctx context.Context, db *gorm.DB, orgID, planID snowflake.ID) (*Plan, error)
}
