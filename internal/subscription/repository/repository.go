package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/subscription/domain"
	"github.com/railzwaylabs/billingcore/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *domain.Subscription) error {
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Subscription, error) {
	var s domain.Subscription
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, externalID string) (*domain.Subscription, error) {
	var s domain.Subscription
	err := db.WithContext(ctx).
		Where("org_id = ? AND customer_id = ? AND external_id = ?", orgID, customerID, externalID).
		Limit(1).
		Find(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, s *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET plan_id = ?, status = ?, current_period_start = ?, current_period_end = ?,
		     trial_start = ?, trial_end = ?, cancel_at_period_end = ?, cancelled_at = ?,
		     metadata = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		s.PlanID,
		s.Status,
		s.CurrentPeriodStart,
		s.CurrentPeriodEnd,
		s.TrialStart,
		s.TrialEnd,
		s.CancelAtPeriodEnd,
		s.CancelledAt,
		s.Metadata,
		s.UpdatedAt,
		s.OrgID,
		s.ID,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Subscription, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("org_id = ?", orgID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}

	stmt, err := page.Apply(stmt)
	if err != nil {
		return nil, err
	}

	var items []*domain.Subscription
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListLiveForCustomer returns subscriptions that currently grant access.
func (r *repo) ListLiveForCustomer(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID) ([]*domain.Subscription, error) {
	var items []*domain.Subscription
	err := db.WithContext(ctx).
		Where("org_id = ? AND customer_id = ? AND status IN ?", orgID, customerID,
			[]domain.Status{domain.StatusActive, domain.StatusTrialing}).
		Order("id DESC").
		Find(&items).Error
	return items, err
}
