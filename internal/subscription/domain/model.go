package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"github.com/railzwaylabs/billingcore/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrSubscriptionNotFound = apperror.New(apperror.KindNotFound, "subscription_not_found")
	ErrInvalidSubscription  = apperror.New(apperror.KindBadRequest, "invalid_subscription")
	ErrInvalidCustomer      = apperror.New(apperror.KindBadRequest, "invalid_customer")
	ErrInvalidPlan          = apperror.New(apperror.KindBadRequest, "invalid_plan")
	ErrInvalidStatus        = apperror.New(apperror.KindBadRequest, "invalid_status")
	ErrAlreadyCancelled     = apperror.New(apperror.KindConflict, "subscription_already_cancelled")
	ErrDuplicateExternalID  = apperror.New(apperror.KindConflict, "duplicate_external_id")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusPastDue   Status = "past_due"
	StatusUnpaid    Status = "unpaid"
	StatusTrialing  Status = "trialing"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCancelled, StatusPastDue, StatusUnpaid, StatusTrialing:
		return true
	}
	return false
}

// Subscription links a customer to a plan. ExternalID, when set, is the
// payment provider's id and the idempotency key for webhook updates; it is
// unique per customer and globally.
type Subscription struct {
	ID                 snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrgID              snowflake.ID      `json:"org_id" gorm:"not null;index"`
	CustomerID         snowflake.ID      `json:"customer_id" gorm:"not null;uniqueIndex:ux_subscriptions_customer_external,priority:1"`
	PlanID             *snowflake.ID     `json:"plan_id,omitempty"`
	Status             Status            `json:"status" gorm:"not null"`
	CurrentPeriodStart time.Time         `json:"current_period_start" gorm:"not null"`
	CurrentPeriodEnd   time.Time         `json:"current_period_end" gorm:"not null"`
	TrialStart         *time.Time        `json:"trial_start,omitempty"`
	TrialEnd           *time.Time        `json:"trial_end,omitempty"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end" gorm:"not null"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	ExternalID         *string           `json:"external_id,omitempty" gorm:"uniqueIndex:ux_subscriptions_customer_external,priority:2;uniqueIndex:ux_subscriptions_external"`
	Metadata           datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

type CreateSubscriptionRequest struct {
	CustomerID    string         `json:"customer_id" binding:"required"`
	PlanID        string         `json:"plan_id" binding:"required"`
	PromotionCode string         `json:"promotion_code"`
	ExternalID    string         `json:"external_id"`
	Metadata      map[string]any `json:"metadata"`
}

type CancelSubscriptionRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

type ListSubscriptionRequest struct {
	Status     string
	CustomerID string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Subscription, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, externalID string) (*Subscription, error)
	Update(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Subscription, error)
	ListLiveForCustomer(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID) ([]*Subscription, error)
}

type ListFilter struct {
	Status     Status
	CustomerID snowflake.ID
}

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error)
	Cancel(ctx context.Context, id string, req CancelSubscriptionRequest) (*Subscription, error)
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context, req ListSubscriptionRequest, page pagination.Pagination) ([]*Subscription, *pagination.PageInfo, error)
}
