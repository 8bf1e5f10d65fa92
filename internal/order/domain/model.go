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
	ErrOrderNotFound     = apperror.New(apperror.KindNotFound, "order_not_found")
	ErrInvalidStatus     = apperror.New(apperror.KindBadRequest, "invalid_status")
	ErrInvalidTransition = apperror.New(apperror.KindConflict, "invalid_status_transition")
	ErrInvalidPlan       = apperror.New(apperror.KindBadRequest, "invalid_plan")
	ErrInvalidCustomer   = apperror.New(apperror.KindBadRequest, "invalid_customer")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

// Terminal states have no outgoing transitions.
func (s Status) Terminal() bool {
	return s.Valid() && s != StatusPending
}

// CanTransition reports whether from -> to is modeled. Only pending orders
// move, and only into a terminal state.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

// Order is one purchase attempt. FinalAmount = BaseAmount - DiscountAmount
// and is never negative.
type Order struct {
	ID                snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrgID             snowflake.ID      `json:"org_id" gorm:"not null;index:ix_orders_org_status,priority:1"`
	CustomerID        snowflake.ID      `json:"customer_id" gorm:"not null;index"`
	PlanID            snowflake.ID      `json:"plan_id" gorm:"not null"`
	Status            Status            `json:"status" gorm:"not null;index:ix_orders_org_status,priority:2"`
	BaseAmount        int64             `json:"base_amount" gorm:"not null"`
	DiscountAmount    int64             `json:"discount_amount" gorm:"not null;default:0"`
	FinalAmount       int64             `json:"final_amount" gorm:"not null"`
	Currency          string            `json:"currency" gorm:"not null;size:3"`
	CountryCode       string            `json:"country_code,omitempty" gorm:"size:2"`
	PPPDiscount       int64             `json:"ppp_discount" gorm:"column:ppp_discount;not null;default:0"`
	PromotionDiscount int64             `json:"promotion_discount" gorm:"not null;default:0"`
	PromotionCode     *string           `json:"promotion_code,omitempty"`
	PromotionID       *snowflake.ID     `json:"promotion_id,omitempty"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	Metadata          datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

type CreateOrderRequest struct {
	CustomerID    snowflake.ID   `json:"customer_id" binding:"required"`
	PlanID        snowflake.ID   `json:"plan_id" binding:"required"`
	PromotionCode string         `json:"promotion_code"`
	CountryCode   string         `json:"country_code"`
	Metadata      map[string]any `json:"metadata"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status" binding:"required"`
}

type ListOrderRequest struct {
	Status     Status
	CustomerID snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Order, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListOrderRequest, page pagination.Pagination) ([]*Order, error)
	// FindPendingForCustomer returns the oldest pending order of the
	// customer, optionally requiring final_amount to equal amount.
	FindPendingForCustomer(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, amount *int64) (*Order, error)
	// TransitionFromPending moves a pending order to status. It reports
	// false, without error, when the order is not pending anymore.
	TransitionFromPending(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, status Status, at time.Time) (bool, error)
}

type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (*Order, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status Status) (*Order, error)
	Get(ctx context.Context, id snowflake.ID) (*Order, error)
	List(ctx context.Context, filter ListOrderRequest, page pagination.Pagination) ([]*Order, *pagination.PageInfo, error)
	// Complete marks a pending order completed inside tx and rolls its paid
	// amount into the customer's aggregates. paidAmount <= 0 falls back to
	// the order's final amount.
	Complete(ctx context.Context, tx *gorm.DB, order *Order, paidAmount int64) (bool, error)
}
