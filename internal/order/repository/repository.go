package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/order/domain"
	"github.com/railzwaylabs/billingcore/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&o).Error
	if err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListOrderRequest, page pagination.Pagination) ([]*domain.Order, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Order{}).
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

	var items []*domain.Order
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindPendingForCustomer(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, amount *int64) (*domain.Order, error) {
	stmt := db.WithContext(ctx).
		Where("org_id = ? AND customer_id = ? AND status = ?", orgID, customerID, domain.StatusPending)
	if amount != nil {
		stmt = stmt.Where("final_amount = ?", *amount)
	}

	var o domain.Order
	if err := stmt.Order("id ASC").Limit(1).Find(&o).Error; err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) TransitionFromPending(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, status domain.Status, at time.Time) (bool, error) {
	var completedAt *time.Time
	if status == domain.StatusCompleted {
		completedAt = &at
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, completed_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ?`,
		status, completedAt, at, orgID, id, domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
