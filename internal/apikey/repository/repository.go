package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apikey/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *domain.APIKey) error {
	return db.WithContext(ctx).Create(key).Error
}

func (r *repo) FindActiveByHash(ctx context.Context, db *gorm.DB, hash string, at time.Time) (*domain.APIKey, error) {
	var key domain.APIKey
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, key_hash, hint, role, is_active, expires_at, last_used_at, created_at
		 FROM api_keys
		 WHERE key_hash = ?
		   AND is_active = ?
		   AND (expires_at IS NULL OR expires_at > ?)
		 LIMIT 1`,
		hash, true, at,
	).Scan(&key).Error
	if err != nil {
		return nil, err
	}
	if key.ID == 0 {
		return nil, nil
	}
	return &key, nil
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, at, id).Error
}
