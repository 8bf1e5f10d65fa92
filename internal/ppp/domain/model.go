package domain

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrRuleNotFound     = apperror.New(apperror.KindNotFound, "ppp_rule_not_found")
	ErrCountryNotFound  = apperror.New(apperror.KindNotFound, "country_not_found")
	ErrInvalidName      = apperror.New(apperror.KindBadRequest, "invalid_name")
	ErrInvalidCountries = apperror.New(apperror.KindBadRequest, "invalid_countries")
	ErrUnknownCountry   = apperror.New(apperror.KindBadRequest, "unknown_country")
	ErrInvalidDiscount  = apperror.New(apperror.KindBadRequest, "invalid_discount_range")
)

// Rule bounds the raw discount of the countries it lists into
// [MinDiscount, MaxDiscount]. MinDiscount <= MaxDiscount always holds for
// stored rules.
type Rule struct {
	ID          snowflake.ID                `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID                `json:"org_id" gorm:"not null;index"`
	Name        string                      `json:"name" gorm:"not null"`
	Countries   datatypes.JSONSlice[string] `json:"countries" gorm:"not null"`
	MinDiscount int                         `json:"min_discount" gorm:"not null;default:0"`
	MaxDiscount int                         `json:"max_discount" gorm:"not null"`
	Priority    int                         `json:"priority" gorm:"not null;default:0"`
	IsActive    bool                        `json:"is_active" gorm:"not null"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

func (Rule) TableName() string {
	return "ppp_rules"
}

func (r Rule) Covers(countryCode string) bool {
	for _, c := range r.Countries {
		if c == countryCode {
			return true
		}
	}
	return false
}

func (r Rule) Clamp(raw int) int {
	switch {
	case raw < r.MinDiscount:
		return r.MinDiscount
	case raw > r.MaxDiscount:
		return r.MaxDiscount
	default:
		return raw
	}
}

// SelectRule picks the active rule covering countryCode with the highest
// priority; equal priorities resolve to the lowest rule id.
func SelectRule(rules []Rule, countryCode string) (Rule, bool) {
	candidates := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive && r.Covers(countryCode) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return Rule{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], true
}

// ResolveDiscount applies the selected rule to a country's raw percentage.
// Without a matching rule the raw percentage is returned unclamped.
func ResolveDiscount(raw int, rules []Rule, countryCode string) int {
	rule, ok := SelectRule(rules, countryCode)
	if !ok {
		return raw
	}
	return rule.Clamp(raw)
}

type CreateRuleRequest struct {
	Name        string   `json:"name" binding:"required"`
	Countries   []string `json:"countries" binding:"required,min=1"`
	MinDiscount int      `json:"min_discount"`
	MaxDiscount int      `json:"max_discount"`
	Priority    int      `json:"priority"`
	IsActive    *bool    `json:"is_active"`
}

type UpdateRuleRequest struct {
	Name        *string  `json:"name"`
	Countries   []string `json:"countries"`
	MinDiscount *int     `json:"min_discount"`
	MaxDiscount *int     `json:"max_discount"`
	Priority    *int     `json:"priority"`
	IsActive    *bool    `json:"is_active"`
}

// Discount is the preview returned to checkout pages.
type Discount struct {
	CountryCode        string        `json:"country_code"`
	CountryName        string        `json:"country_name"`
	Currency           string        `json:"currency,omitempty"`
	DiscountPercentage int           `json:"discount_percentage"`
	RuleID             *snowflake.ID `json:"rule_id,omitempty"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rule *Rule) error
	Update(ctx context.Context, db *gorm.DB, rule *Rule) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Rule, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Rule, error)
	ListActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Rule, error)
}

type Service interface {
	CalculatePPPDiscount(ctx context.Context, countryCode string, orgID snowflake.ID) (int, error)
	GetPPPDiscount(ctx context.Context, countryCode string) (*Discount, error)
	CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error)
	UpdateRule(ctx context.Context, id snowflake.ID, req UpdateRuleRequest) (*Rule, error)
	DeleteRule(ctx context.Context, id snowflake.ID) error
	GetRule(ctx context.Context, id snowflake.ID) (*Rule, error)
	ListRules(ctx context.Context) ([]Rule, error)
}
