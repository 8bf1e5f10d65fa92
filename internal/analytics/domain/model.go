package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidEventType = apperror.New(apperror.KindBadRequest, "invalid_event_type")
	ErrInvalidWindow    = apperror.New(apperror.KindBadRequest, "invalid_window")
	ErrInvalidFormat    = apperror.New(apperror.KindBadRequest, "invalid_export_format")
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
	DefaultWindow    = 30 * 24 * time.Hour
	MaxExportRows    = 10000
)

type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
)

// Event is an append-only audit record. Rows are never updated.
type Event struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrgID      snowflake.ID      `json:"org_id" gorm:"not null;index:ix_analytics_events_org_type,priority:1"`
	CustomerID *snowflake.ID     `json:"customer_id,omitempty" gorm:"index"`
	EventType  string            `json:"event_type" gorm:"type:varchar(128);not null;index:ix_analytics_events_org_type,priority:2"`
	EventData  datatypes.JSONMap `json:"event_data"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null"`
}

func (Event) TableName() string {
	return "analytics_events"
}

type ListEventsRequest struct {
	TypePrefix string
	CustomerID *snowflake.ID
	Limit      int
}

type RevenueRequest struct {
	From time.Time
	To   time.Time
}

// ExportRequest selects events in [From, To). A zero window covers the
// last 30 days.
type ExportRequest struct {
	From       time.Time
	To         time.Time
	TypePrefix string
	Format     ExportFormat
}

// ExportResult carries the rendered file and a sha256 of its bytes.
type ExportResult struct {
	Data     []byte
	Checksum string
	Format   ExportFormat
	Count    int
}

type CurrencyRevenue struct {
	Currency string `json:"currency"`
	Revenue  int64  `json:"revenue"`
	Orders   int64  `json:"orders"`
}

type RevenueSummary struct {
	From                time.Time         `json:"from"`
	To                  time.Time         `json:"to"`
	Revenue             int64             `json:"revenue"`
	CompletedOrders     int64             `json:"completed_orders"`
	ActiveSubscriptions int64             `json:"active_subscriptions"`
	ByCurrency          []CurrencyRevenue `json:"by_currency"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, req ListEventsRequest) ([]Event, error)
	ListRange(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to time.Time, typePrefix string, limit int) ([]Event, error)
	CompletedRevenue(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to time.Time) ([]CurrencyRevenue, error)
	CountLiveSubscriptions(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)
}

type Service interface {
	// Record appends one event for orgID outside any caller transaction.
	Record(ctx context.Context, orgID snowflake.ID, customerID *snowflake.ID, eventType string, data map[string]any) (*Event, error)
	ListEvents(ctx context.Context, req ListEventsRequest) ([]Event, error)
	RevenueSummary(ctx context.Context, req RevenueRequest) (*RevenueSummary, error)
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
}
