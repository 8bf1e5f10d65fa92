package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrPromotionNotFound    = apperror.New(apperror.KindNotFound, "promotion_not_found")
	ErrPromotionInactive    = apperror.New(apperror.KindNotFound, "promotion_inactive")
	ErrPromotionExpired     = apperror.New(apperror.KindNotFound, "promotion_expired")
	ErrPromotionExhausted   = apperror.New(apperror.KindNotFound, "promotion_exhausted")
	ErrPromotionNotEligible = apperror.New(apperror.KindNotFound, "promotion_not_eligible")
	ErrDuplicateCode        = apperror.New(apperror.KindConflict, "duplicate_promotion_code")
	ErrInvalidCode          = apperror.New(apperror.KindBadRequest, "invalid_code")
	ErrInvalidType          = apperror.New(apperror.KindBadRequest, "invalid_type")
	ErrInvalidValue         = apperror.New(apperror.KindBadRequest, "invalid_value")
	ErrInvalidWindow        = apperror.New(apperror.KindBadRequest, "invalid_validity_window")
)

type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
	TypeFreeTrial  Type = "free_trial"
)

func (t Type) Valid() bool {
	switch t {
	case TypePercentage, TypeFixed, TypeFreeTrial:
		return true
	}
	return false
}

// Promotion codes are globally unique and stored upper-cased. For
// free_trial promotions Value is a number of trial days.
type Promotion struct {
	ID                  snowflake.ID                `json:"id" gorm:"primaryKey"`
	OrgID               snowflake.ID                `json:"org_id" gorm:"not null;index"`
	Code                string                      `json:"code" gorm:"not null;uniqueIndex"`
	Name                string                      `json:"name" gorm:"not null"`
	Description         string                      `json:"description,omitempty"`
	Type                Type                        `json:"type" gorm:"not null"`
	Value               int64                       `json:"value" gorm:"not null"`
	MinOrderValue       int64                       `json:"min_order_value" gorm:"not null;default:0"`
	MaxUses             *int64                      `json:"max_uses,omitempty"`
	CurrentUses         int64                       `json:"current_uses" gorm:"not null;default:0"`
	MaxUsesPerCustomer  int64                       `json:"max_uses_per_customer" gorm:"not null;default:1"`
	ValidFrom           time.Time                   `json:"valid_from" gorm:"not null"`
	ValidTo             *time.Time                  `json:"valid_to,omitempty"`
	ApplicableProducts  datatypes.JSONSlice[string] `json:"applicable_products,omitempty"`
	ApplicableCountries datatypes.JSONSlice[string] `json:"applicable_countries,omitempty"`
	IsActive            bool                        `json:"is_active" gorm:"not null"`
	CreatedAt           time.Time                   `json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
}

func (Promotion) TableName() string {
	return "promotions"
}

// Usage is unique per (promotion, customer, order), so recording the same
// order twice never double counts.
type Usage struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	PromotionID    snowflake.ID `json:"promotion_id" gorm:"not null;uniqueIndex:ux_promotion_usage"`
	CustomerID     snowflake.ID `json:"customer_id" gorm:"not null;uniqueIndex:ux_promotion_usage"`
	OrderID        snowflake.ID `json:"order_id" gorm:"not null;uniqueIndex:ux_promotion_usage"`
	DiscountAmount int64        `json:"discount_amount" gorm:"not null"`
	UsedAt         time.Time    `json:"used_at" gorm:"not null"`
}

func (Usage) TableName() string {
	return "promotion_usages"
}

// Discount is the monetary discount against base. Fixed discounts never
// exceed base; free trials carry no monetary discount.
func (p *Promotion) Discount(base int64) int64 {
	if base <= 0 {
		return 0
	}
	switch p.Type {
	case TypePercentage:
		return PercentOf(base, p.Value)
	case TypeFixed:
		if p.Value > base {
			return base
		}
		return p.Value
	default:
		return 0
	}
}

// PercentOf returns round(base * pct / 100), half away from zero.
func PercentOf(base, pct int64) int64 {
	return decimal.NewFromInt(base).
		Mul(decimal.NewFromInt(pct)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// FreeTrialDays reports the trial granted by a free_trial promotion.
func (p *Promotion) FreeTrialDays() int {
	if p == nil || p.Type != TypeFreeTrial || p.Value <= 0 {
		return 0
	}
	return int(p.Value)
}

// Eligibility is the order context a promotion is checked against.
type Eligibility struct {
	Now           time.Time
	BasePrice     int64
	ProductID     snowflake.ID
	CountryCode   string
	CustomerUses  int64
	CustomerKnown bool
}

// CheckEligibility applies activity, the validity window, usage caps and
// applicability. All failures are NotFound kinds so callers treat an unusable
// code the same as a missing one.
func (p *Promotion) CheckEligibility(e Eligibility) error {
	if !p.IsActive {
		return ErrPromotionInactive
	}
	if e.Now.Before(p.ValidFrom) || (p.ValidTo != nil && e.Now.After(*p.ValidTo)) {
		return ErrPromotionExpired
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return ErrPromotionExhausted
	}
	if e.CustomerKnown && p.MaxUsesPerCustomer > 0 && e.CustomerUses >= p.MaxUsesPerCustomer {
		return ErrPromotionExhausted
	}
	if e.BasePrice < p.MinOrderValue {
		return ErrPromotionNotEligible
	}
	if len(p.ApplicableProducts) > 0 && !contains(p.ApplicableProducts, e.ProductID.String()) {
		return ErrPromotionNotEligible
	}
	if len(p.ApplicableCountries) > 0 && !contains(p.ApplicableCountries, e.CountryCode) {
		return ErrPromotionNotEligible
	}
	return nil
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

type ResolveRequest struct {
	OrgID       snowflake.ID
	Code        string
	CustomerID  snowflake.ID
	PlanID      snowflake.ID
	ProductID   snowflake.ID
	CountryCode string
	BasePrice   int64
}

type Resolution struct {
	Promotion *Promotion `json:"promotion"`
	Discount  int64      `json:"discount"`
}

type CreatePromotionRequest struct {
	Code                string     `json:"code" binding:"required"`
	Name                string     `json:"name" binding:"required"`
	Description         string     `json:"description"`
	Type                Type       `json:"type" binding:"required"`
	Value               int64      `json:"value"`
	MinOrderValue       int64      `json:"min_order_value"`
	MaxUses             *int64     `json:"max_uses"`
	MaxUsesPerCustomer  *int64     `json:"max_uses_per_customer"`
	ValidFrom           *time.Time `json:"valid_from"`
	ValidTo             *time.Time `json:"valid_to"`
	ApplicableProducts  []string   `json:"applicable_products"`
	ApplicableCountries []string   `json:"applicable_countries"`
}

type ValidateRequest struct {
	Code        string       `json:"code" binding:"required"`
	PlanID      snowflake.ID `json:"plan_id" binding:"required"`
	CustomerID  snowflake.ID `json:"customer_id"`
	CountryCode string       `json:"country_code"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, promotion *Promotion) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Promotion, error)
	FindByCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*Promotion, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Promotion, error)
	SetActive(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, active bool, at time.Time) (bool, error)
	CountCustomerUsage(ctx context.Context, db *gorm.DB, promotionID, customerID snowflake.ID) (int64, error)
	InsertUsage(ctx context.Context, db *gorm.DB, usage *Usage) error
	// IncrementUses bumps current_uses unless max_uses is already reached.
	IncrementUses(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	ReleaseUse(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}

type Service interface {
	Resolve(ctx context.Context, req ResolveRequest) (*Resolution, error)
	Validate(ctx context.Context, req ValidateRequest) (*Resolution, error)
	Create(ctx context.Context, req CreatePromotionRequest) (*Promotion, error)
	Get(ctx context.Context, id snowflake.ID) (*Promotion, error)
	List(ctx context.Context) ([]Promotion, error)
	Deactivate(ctx context.Context, id snowflake.ID) error
	// RecordUsage claims one use of promotion for an order inside tx. It
	// reports false when the promotion ran out of uses since it was resolved.
	RecordUsage(ctx context.Context, tx *gorm.DB, promotion *Promotion, customerID, orderID snowflake.ID, amount int64) (bool, error)
}
