package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/railzwaylabs/billingcore/internal/apikey/domain"
	"github.com/railzwaylabs/billingcore/internal/apikey/repository"
	"github.com/railzwaylabs/billingcore/internal/apikey/service"
	"github.com/railzwaylabs/billingcore/internal/clock"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	"github.com/railzwaylabs/billingcore/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreateAndAuthenticate(t *testing.T) {
	db := dbtest.Open(t, &domain.APIKey{})
	node := dbtest.Node(t)
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clock.Fixed(now), Repo: repository.Provide()})

	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	issued, err := svc.Create(ctx, domain.CreateAPIKeyRequest{Name: "ci", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.Key, domain.KeyPrefix))
	assert.Equal(t, domain.HashAPIKey(issued.Key), issued.KeyHash)

	key, err := svc.Authenticate(context.Background(), issued.Key)
	require.NoError(t, err)
	assert.Equal(t, orgID, key.OrgID)
	assert.Equal(t, domain.RoleAdmin, key.Role)

	_, err = svc.Authenticate(context.Background(), issued.Key+"x")
	assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
	_, err = svc.Authenticate(context.Background(), "not-a-key")
	assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
}

func TestExpiredKeyIsRejected(t *testing.T) {
	db := dbtest.Open(t, &domain.APIKey{})
	node := dbtest.Node(t)
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clock.Fixed(now), Repo: repository.Provide()})
	ctx := orgcontext.WithOrgID(context.Background(), node.Generate())

	expired := now.Add(-time.Minute)
	issued, err := svc.Create(ctx, domain.CreateAPIKeyRequest{Name: "old", ExpiresAt: &expired})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, issued.Role)

	_, err = svc.Authenticate(context.Background(), issued.Key)
	assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
}

func TestCreateValidatesRole(t *testing.T) {
	db := dbtest.Open(t, &domain.APIKey{})
	node := dbtest.Node(t)
	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clock.Fixed(time.Now()), Repo: repository.Provide()})
	ctx := orgcontext.WithOrgID(context.Background(), node.Generate())

	_, err := svc.Create(ctx, domain.CreateAPIKeyRequest{Name: "x", Role: "owner"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}
