package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"gorm.io/gorm"
)

var (
	ErrFeatureNotFound = apperror.New(apperror.KindNotFound, "feature_not_found")
	ErrInvalidName     = apperror.New(apperror.KindBadRequest, "invalid_name")
	ErrInvalidSlug     = apperror.New(apperror.KindBadRequest, "invalid_slug")
	ErrDuplicateSlug   = apperror.New(apperror.KindConflict, "duplicate_slug")
)

type Feature struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID `json:"org_id" gorm:"not null;uniqueIndex:ux_features_org_slug,priority:1"`
	Slug        string       `json:"slug" gorm:"type:varchar(128);not null;uniqueIndex:ux_features_org_slug,priority:2"`
	Name        string       `json:"name" gorm:"not null"`
	Description string       `json:"description,omitempty"`
	IsActive    bool         `json:"is_active" gorm:"not null"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (Feature) TableName() string {
	return "features"
}

// PlanFeature grants a feature to every live subscription on the plan.
type PlanFeature struct {
	PlanID    snowflake.ID `json:"plan_id" gorm:"primaryKey;autoIncrement:false"`
	FeatureID snowflake.ID `json:"feature_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time    `json:"created_at"`
}

func (PlanFeature) TableName() string {
	return "plan_features"
}

// Entitlement is a customer-level override. Granted false denies the
// feature even when a subscription plan includes it.
type Entitlement struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID      snowflake.ID `json:"org_id" gorm:"not null;index"`
	CustomerID snowflake.ID `json:"customer_id" gorm:"not null;uniqueIndex:ux_entitlements_customer_feature,priority:1"`
	FeatureID  snowflake.ID `json:"feature_id" gorm:"not null;uniqueIndex:ux_entitlements_customer_feature,priority:2"`
	Granted    bool         `json:"granted" gorm:"not null"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (Entitlement) TableName() string {
	return "entitlements"
}

func (e *Entitlement) ActiveAt(t time.Time) bool {
	return e.ExpiresAt == nil || t.Before(*e.ExpiresAt)
}

type AccessSource string

const (
	SourceEntitlement  AccessSource = "entitlement"
	SourceSubscription AccessSource = "subscription"
	SourceNone         AccessSource = "none"
)

type Access struct {
	Feature        string        `json:"feature"`
	Allowed        bool          `json:"allowed"`
	Source         AccessSource  `json:"source"`
	SubscriptionID *snowflake.ID `json:"subscription_id,omitempty"`
}

type CreateFeatureRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type GrantRequest struct {
	CustomerID  snowflake.ID `json:"customer_id"`
	FeatureSlug string       `json:"feature" binding:"required"`
	Granted     bool         `json:"granted"`
	ExpiresAt   *time.Time   `json:"expires_at"`
}

type Repository interface {
	InsertFeature(ctx context.Context, db *gorm.DB, feature *Feature) error
	FindFeatureBySlug(ctx context.Context, db *gorm.DB, orgID snowflake.ID, slug string) (*Feature, error)
	ListFeatures(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Feature, error)
	AttachToPlan(ctx context.Context, db *gorm.DB, link *PlanFeature) error
	FindPlanWithFeature(ctx context.Context, db *gorm.DB, featureID snowflake.ID, planIDs []snowflake.ID) (*snowflake.ID, error)
	UpsertEntitlement(ctx context.Context, db *gorm.DB, entitlement *Entitlement) error
	FindEntitlement(ctx context.Context, db *gorm.DB, orgID, customerID, featureID snowflake.ID) (*Entitlement, error)
}

type Service interface {
	CreateFeature(ctx context.Context, req CreateFeatureRequest) (*Feature, error)
	ListFeatures(ctx context.Context) ([]Feature, error)
	AttachToPlan(ctx context.Context, planID snowflake.ID, featureSlug string) error
	Grant(ctx context.Context, req GrantRequest) (*Entitlement, error)
	// CheckFeatureAccess resolves a direct entitlement first, then any
	// active or trialing subscription whose plan includes the feature.
	CheckFeatureAccess(ctx context.Context, customerID snowflake.ID, featureSlug string) (*Access, error)
}
