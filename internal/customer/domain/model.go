package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"gorm.io/datatypes"
)

var (
	ErrCustomerNotFound    = apperror.New(apperror.KindNotFound, "customer_not_found")
	ErrInvalidName         = apperror.New(apperror.KindBadRequest, "invalid_name")
	ErrInvalidEmail        = apperror.New(apperror.KindBadRequest, "invalid_email")
	ErrInvalidCountry      = apperror.New(apperror.KindBadRequest, "invalid_country")
	ErrDuplicateExternalID = apperror.New(apperror.KindConflict, "duplicate_external_id")
)

// Customer is a buyer within an organization. TotalSpent only ever grows.
type Customer struct {
	ID          snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID      `json:"org_id" gorm:"not null;index"`
	Name        string            `json:"name" gorm:"not null"`
	Email       string            `json:"email" gorm:"not null;index"`
	ExternalID  *string           `json:"external_id,omitempty" gorm:"uniqueIndex"`
	Country     string            `json:"country,omitempty" gorm:"size:2"`
	TotalSpent  int64             `json:"total_spent" gorm:"not null;default:0"`
	OrdersCount int64             `json:"orders_count" gorm:"not null;default:0"`
	LastOrderAt *time.Time        `json:"last_order_at,omitempty"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

type CreateCustomerRequest struct {
	Name       string         `json:"name" binding:"required"`
	Email      string         `json:"email" binding:"required,email"`
	ExternalID string         `json:"external_id"`
	Country    string         `json:"country"`
	Metadata   map[string]any `json:"metadata"`
}
