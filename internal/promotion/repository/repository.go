package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/promotion/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, promotion *domain.Promotion) error {
	return db.WithContext(ctx).Create(promotion).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Promotion, error) {
	var p domain.Promotion
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*domain.Promotion, error) {
	var p domain.Promotion
	err := db.WithContext(ctx).
		Where("org_id = ? AND code = ?", orgID, code).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.Promotion, error) {
	var items []domain.Promotion
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("id DESC").
		Find(&items).Error
	return items, err
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, active bool, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE promotions SET is_active = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		active, at, orgID, id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) CountCustomerUsage(ctx context.Context, db *gorm.DB, promotionID, customerID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Usage{}).
		Where("promotion_id = ? AND customer_id = ?", promotionID, customerID).
		Count(&count).Error
	return count, err
}

func (r *repo) InsertUsage(ctx context.Context, db *gorm.DB, usage *domain.Usage) error {
	return db.WithContext(ctx).Create(usage).Error
}

func (r *repo) IncrementUses(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE promotions
		 SET current_uses = current_uses + 1, updated_at = ?
		 WHERE id = ? AND (max_uses IS NULL OR current_uses < max_uses)`,
		at, id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ReleaseUse(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE promotions
		 SET current_uses = current_uses - 1, updated_at = ?
		 WHERE id = ? AND current_uses > 0`,
		at, id,
	).Error
}
