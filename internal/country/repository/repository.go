package repository

import (
	"context"

	"github.com/railzwaylabs/billingcore/internal/country/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Country, error) {
	var c domain.Country
	err := db.WithContext(ctx).Raw(
		`SELECT code, name, currency, ppp_factor, discount_percentage, is_active
		 FROM countries WHERE code = ? AND is_active = ?`,
		code, true,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.Code == "" {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Country, error) {
	var items []domain.Country
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("code ASC").
		Find(&items).Error
	return items, err
}

func (r *repo) ExistingCodes(ctx context.Context, db *gorm.DB, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var found []string
	err := db.WithContext(ctx).
		Model(&domain.Country{}).
		Where("code IN ?", codes).
		Pluck("code", &found).Error
	return found, err
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, country *domain.Country) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "currency", "ppp_factor", "discount_percentage", "is_active"}),
	}).Create(country).Error
}
