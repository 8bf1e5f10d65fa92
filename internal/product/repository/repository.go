package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/product/domain"
	"gorm.io/gorm"
)

const planSelect = `SELECT pp.id, pp.product_id, p.org_id, pp.name, pp.price, pp.currency,
	pp.billing_interval, pp.interval_count, pp.trial_days, pp.is_active
	FROM pricing_plans pp
	JOIN products p ON p.id = pp.product_id`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertProduct(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Create(product).Error
}

func (r *repo) InsertPlan(ctx context.Context, db *gorm.DB, plan *domain.PricingPlan) error {
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repo) FindPlan(ctx context.Context, db *gorm.DB, planID snowflake.ID) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).Raw(planSelect+` WHERE pp.id = ?`, planID).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) FindPlanForOrg(ctx context.Context, db *gorm.DB, orgID, planID snowflake.ID) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).Raw(planSelect+` WHERE pp.id = ? AND p.org_id = ?`, planID, orgID).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}
