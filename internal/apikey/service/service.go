package service

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apikey/domain"
	"github.com/railzwaylabs/billingcore/internal/clock"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("apikey.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAPIKeyRequest) (*domain.Issued, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	role := req.Role
	if role == "" {
		role = domain.RoleMember
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}

	raw := domain.GenerateKey()
	key := &domain.APIKey{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      name,
		KeyHash:   domain.HashAPIKey(raw),
		Hint:      domain.KeyHint(raw),
		Role:      role,
		IsActive:  true,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: s.clock.Now(ctx),
	}
	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		return nil, err
	}

	s.log.Info("api key created",
		zap.String("org_id", orgID.String()),
		zap.String("api_key_id", key.ID.String()),
		zap.String("role", string(role)))
	return &domain.Issued{APIKey: key, Key: raw}, nil
}

// Authenticate resolves an active, unexpired key. A failed last-used
// update is logged and does not reject the request.
func (s *Service) Authenticate(ctx context.Context, raw string) (*domain.APIKey, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, domain.KeyPrefix) {
		return nil, domain.ErrInvalidAPIKey
	}

	hash := domain.HashAPIKey(raw)
	now := s.clock.Now(ctx)
	key, err := s.repo.FindActiveByHash(ctx, s.db, hash, now)
	if err != nil {
		return nil, err
	}
	if key == nil || subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
		return nil, domain.ErrInvalidAPIKey
	}

	if err := s.repo.TouchLastUsed(ctx, s.db, key.ID, now); err != nil {
		s.log.Warn("failed to record api key use", zap.String("api_key_id", key.ID.String()), zap.Error(err))
	}
	return key, nil
}
