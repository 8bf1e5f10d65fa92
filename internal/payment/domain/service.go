package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"gorm.io/gorm"
)

var (
	ErrInvalidPayload        = apperror.New(apperror.KindInvalidPayload, "invalid_payload")
	ErrInvalidSignature      = apperror.New(apperror.KindUnauthorized, "invalid_signature")
	ErrUnsupportedProvider   = apperror.New(apperror.KindBadRequest, "unsupported_provider")
	ErrUnsupportedEventType  = apperror.New(apperror.KindBadRequest, "unsupported_event_type")
	ErrMissingSubscriptionID = apperror.New(apperror.KindBadRequest, "missing_subscription_id")
	ErrEventInProgress       = apperror.New(apperror.KindConflict, "event_in_progress")
	ErrSubscriptionNotFound  = apperror.New(apperror.KindNotFound, "subscription_not_found")
	ErrCustomerNotFound      = apperror.New(apperror.KindNotFound, "customer_not_found")
)

type Reconciler interface {
	ProcessPaymentWebhook(ctx context.Context, req WebhookRequest) (*WebhookResult, error)
}

type ProcessedEventRepository interface {
	Find(ctx context.Context, db *gorm.DB, orgID snowflake.ID, provider, eventID string) (*ProcessedWebhookEvent, error)
	Insert(ctx context.Context, db *gorm.DB, event *ProcessedWebhookEvent) error
}
