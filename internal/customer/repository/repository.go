package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/customer/domain"
	"gorm.io/gorm"
)

const customerColumns = `id, org_id, name, email, external_id, country, total_spent, orders_count,
	last_order_at, metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Customer, error) {
	var c domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+` FROM customers WHERE org_id = ? AND id = ?`,
		orgID, id,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, externalID string) (*domain.Customer, error) {
	var c domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+` FROM customers WHERE org_id = ? AND external_id = ? LIMIT 1`,
		orgID, externalID,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) RecordCompletedOrder(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, amount int64, at time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET total_spent = total_spent + ?, orders_count = orders_count + 1, last_order_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		amount, at, at, orgID, id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}
