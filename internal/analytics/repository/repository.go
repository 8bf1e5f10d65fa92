package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/analytics/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, req domain.ListEventsRequest) ([]domain.Event, error) {
	stmt := db.WithContext(ctx).Model(&domain.Event{}).Where("org_id = ?", orgID)
	if req.TypePrefix != "" {
		stmt = stmt.Where("SUBSTR(event_type, 1, ?) = ?", len(req.TypePrefix), req.TypePrefix)
	}
	if req.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *req.CustomerID)
	}

	var events []domain.Event
	err := stmt.Order("created_at DESC").Order("id DESC").Limit(req.Limit).Find(&events).Error
	return events, err
}

func (r *repo) ListRange(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to time.Time, typePrefix string, limit int) ([]domain.Event, error) {
	stmt := db.WithContext(ctx).Model(&domain.Event{}).
		Where("org_id = ? AND created_at >= ? AND created_at < ?", orgID, from, to)
	if typePrefix != "" {
		stmt = stmt.Where("SUBSTR(event_type, 1, ?) = ?", len(typePrefix), typePrefix)
	}

	var events []domain.Event
	err := stmt.Order("created_at ASC").Order("id ASC").Limit(limit).Find(&events).Error
	return events, err
}

func (r *repo) CompletedRevenue(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to time.Time) ([]domain.CurrencyRevenue, error) {
	var rows []domain.CurrencyRevenue
	err := db.WithContext(ctx).Raw(
		`SELECT currency, COALESCE(SUM(final_amount), 0) AS revenue, COUNT(*) AS orders
		 FROM orders
		 WHERE org_id = ? AND status = 'completed' AND completed_at >= ? AND completed_at < ?
		 GROUP BY currency
		 ORDER BY currency`,
		orgID, from, to,
	).Scan(&rows).Error
	return rows, err
}

func (r *repo) CountLiveSubscriptions(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM subscriptions WHERE org_id = ? AND status IN ('active', 'trialing')`,
		orgID,
	).Scan(&count).Error
	return count, err
}
