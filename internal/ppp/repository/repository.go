package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/ppp/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Create(rule).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Exec(
		`UPDATE ppp_rules
		 SET name = ?, countries = ?, min_discount = ?, max_discount = ?, priority = ?, is_active = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		rule.Name,
		rule.Countries,
		rule.MinDiscount,
		rule.MaxDiscount,
		rule.Priority,
		rule.IsActive,
		rule.UpdatedAt,
		rule.OrgID,
		rule.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM ppp_rules WHERE org_id = ? AND id = ?`, orgID, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Rule, error) {
	var rule domain.Rule
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.Rule, error) {
	var rules []domain.Rule
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("priority DESC, id ASC").
		Find(&rules).Error
	return rules, err
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.Rule, error) {
	var rules []domain.Rule
	err := db.WithContext(ctx).
		Where("org_id = ? AND is_active = ?", orgID, true).
		Order("priority DESC, id ASC").
		Find(&rules).Error
	return rules, err
}
