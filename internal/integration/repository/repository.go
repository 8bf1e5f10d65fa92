package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/integration/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, integration *domain.Integration) error {
	return db.WithContext(ctx).Create(integration).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, integration *domain.Integration) error {
	return db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("org_id = ? AND id = ?", integration.OrgID, integration.ID).
		Updates(map[string]any{
			"is_active":      integration.IsActive,
			"credentials":    integration.SealedCredentials,
			"webhook_secret": integration.SealedWebhookSecret,
			"settings":       integration.Settings,
			"updated_at":     integration.UpdatedAt,
		}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Integration, error) {
	return r.first(db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id))
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID, provider string) (*domain.Integration, error) {
	return r.first(db.WithContext(ctx).Where("org_id = ? AND provider = ? AND is_active = ?", orgID, provider, true))
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.Integration, error) {
	var items []domain.Integration
	err := db.WithContext(ctx).
		Where("org_id = ? AND is_active = ?", orgID, true).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.Integration, error) {
	var items []domain.Integration
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("provider ASC").
		Find(&items).Error
	return items, err
}

func (r *repo) first(stmt *gorm.DB) (*domain.Integration, error) {
	var item domain.Integration
	if err := stmt.First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}
