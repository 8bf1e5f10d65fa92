package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/payment/domain"
	"gorm.io/gorm"
)

type processedEventRepo struct{}

func Provide() domain.ProcessedEventRepository {
	return &processedEventRepo{}
}

func (r *processedEventRepo) Find(ctx context.Context, db *gorm.DB, orgID snowflake.ID, provider, eventID string) (*domain.ProcessedWebhookEvent, error) {
	var event domain.ProcessedWebhookEvent
	err := db.WithContext(ctx).
		Where("org_id = ? AND provider = ? AND event_id = ?", orgID, provider, eventID).
		Limit(1).
		Find(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *processedEventRepo) Insert(ctx context.Context, db *gorm.DB, event *domain.ProcessedWebhookEvent) error {
	return db.WithContext(ctx).Create(event).Error
}
