package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	EventInvoicePaid           = "invoice.paid"
	EventInvoicePaymentFailed  = "invoice.payment_failed"
	EventSubscriptionCreated   = "subscription.created"
	EventSubscriptionUpdated   = "subscription.updated"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventSubscriptionTrialEnd  = "subscription.trial_ended"
)

const StatusSuccess = "success"

// Envelope is the provider-neutral webhook body. Signature carries the
// provider's signature header value over EventType + "." + Data.
type Envelope struct {
	EventID   string          `json:"eventId" validate:"omitempty,max=255"`
	EventType string          `json:"eventType" validate:"required,max=128"`
	Data      json.RawMessage `json:"data" validate:"required"`
	Signature string          `json:"signature" validate:"required"`
}

// SignedContent is the byte string the provider signature covers.
func (e *Envelope) SignedContent() []byte {
	out := make([]byte, 0, len(e.EventType)+1+len(e.Data))
	out = append(out, e.EventType...)
	out = append(out, '.')
	return append(out, e.Data...)
}

type EventData struct {
	CustomerID        string         `json:"customerId" validate:"required,max=255"`
	SubscriptionID    string         `json:"subscriptionId" validate:"omitempty,max=255"`
	PlanID            string         `json:"planId" validate:"omitempty,max=255"`
	Amount            *int64         `json:"amount" validate:"omitempty,gte=0"`
	Currency          string         `json:"currency" validate:"omitempty,len=3"`
	Status            string         `json:"status" validate:"omitempty,oneof=active cancelled past_due unpaid trialing"`
	PeriodStart       *time.Time     `json:"periodStart"`
	PeriodEnd         *time.Time     `json:"periodEnd"`
	TrialStart        *time.Time     `json:"trialStart"`
	TrialEnd          *time.Time     `json:"trialEnd"`
	CancelAtPeriodEnd *bool          `json:"cancelAtPeriodEnd"`
	Metadata          map[string]any `json:"metadata"`
}

type WebhookRequest struct {
	OrgID    snowflake.ID
	Provider string
	Payload  []byte
}

type WebhookResult struct {
	EventType      string        `json:"eventType"`
	Status         string        `json:"status"`
	OrderID        *snowflake.ID `json:"orderId,omitempty"`
	SubscriptionID *snowflake.ID `json:"subscriptionId,omitempty"`
	Replayed       bool          `json:"replayed,omitempty"`
}

// ProcessedWebhookEvent records the outcome of an event id so that a
// redelivery returns the stored result instead of dispatching again.
type ProcessedWebhookEvent struct {
	ID        snowflake.ID                      `json:"id" gorm:"primaryKey"`
	OrgID     snowflake.ID                      `json:"org_id" gorm:"not null;uniqueIndex:ux_processed_webhook_events,priority:1"`
	Provider  string                            `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_processed_webhook_events,priority:2"`
	EventID   string                            `json:"event_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_processed_webhook_events,priority:3"`
	EventType string                            `json:"event_type" gorm:"type:varchar(128);not null"`
	Result    datatypes.JSONType[WebhookResult] `json:"result"`
	CreatedAt time.Time                         `json:"created_at" gorm:"not null"`
}

func (ProcessedWebhookEvent) TableName() string {
	return "processed_webhook_events"
}
