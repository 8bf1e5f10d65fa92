package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"gorm.io/gorm"
)

var (
	ErrInvalidAPIKey = apperror.New(apperror.KindUnauthorized, "invalid_api_key")
	ErrInvalidName   = apperror.New(apperror.KindBadRequest, "invalid_name")
	ErrInvalidRole   = apperror.New(apperror.KindBadRequest, "invalid_role")
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// KeyPrefix marks billingcore API keys in logs and secret scanners.
const KeyPrefix = "bck_"

// APIKey is stored by hash only; the plaintext key is shown once.
type APIKey struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID      snowflake.ID `json:"org_id" gorm:"not null;index"`
	Name       string       `json:"name" gorm:"not null"`
	KeyHash    string       `json:"-" gorm:"type:varchar(64);not null;uniqueIndex"`
	Hint       string       `json:"hint" gorm:"type:varchar(16);not null"`
	Role       Role         `json:"role" gorm:"type:varchar(16);not null"`
	IsActive   bool         `json:"is_active" gorm:"not null"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
	LastUsedAt *time.Time   `json:"last_used_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

func (APIKey) TableName() string {
	return "api_keys"
}

func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func GenerateKey() string {
	return KeyPrefix + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// KeyHint keeps the prefix and a few characters on each end for display.
func KeyHint(raw string) string {
	if len(raw) < len(KeyPrefix)+8 {
		return KeyPrefix + "..."
	}
	return raw[:len(KeyPrefix)+4] + "..." + raw[len(raw)-4:]
}

type CreateAPIKeyRequest struct {
	Name      string     `json:"name" binding:"required"`
	Role      Role       `json:"role"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type Issued struct {
	*APIKey
	Key string `json:"key"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindActiveByHash(ctx context.Context, db *gorm.DB, hash string, at time.Time) (*APIKey, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}

type Service interface {
	Create(ctx context.Context, req CreateAPIKeyRequest) (*Issued, error)
	Authenticate(ctx context.Context, raw string) (*APIKey, error)
}
