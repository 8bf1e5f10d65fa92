package bootstrap

import (
	"context"
	"testing"
	"time"

	apikeydomain "github.com/railzwaylabs/billingcore/internal/apikey/domain"
	apikeyrepo "github.com/railzwaylabs/billingcore/internal/apikey/repository"
	"github.com/railzwaylabs/billingcore/internal/clock"
	"github.com/railzwaylabs/billingcore/internal/config"
	"github.com/railzwaylabs/billingcore/internal/migration"
	organizationdomain "github.com/railzwaylabs/billingcore/internal/organization/domain"
	organizationrepo "github.com/railzwaylabs/billingcore/internal/organization/repository"
	ppprepo "github.com/railzwaylabs/billingcore/internal/ppp/repository"
	productrepo "github.com/railzwaylabs/billingcore/internal/product/repository"
	promotionrepo "github.com/railzwaylabs/billingcore/internal/promotion/repository"
	"github.com/railzwaylabs/billingcore/internal/seed"
	"github.com/railzwaylabs/billingcore/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestSchemaGate(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	gate, err := NewSchemaGate(db)
	require.NoError(t, err)
	assert.ErrorIs(t, gate.MustBeActive(ctx), ErrSchemaNotMigrated)

	_, err = migration.Run(ctx, db)
	require.NoError(t, err)
	require.NoError(t, gate.MustBeActive(ctx))

	require.NoError(t, db.Model(&migration.BootstrapState{}).Where("id = ?", 1).Update("schema_version", "0").Error)
	assert.ErrorIs(t, gate.MustBeActive(ctx), ErrSchemaVersionMismatch)

	_, err = migration.Run(ctx, db)
	require.NoError(t, err)
	require.NoError(t, db.Model(&migration.BootstrapState{}).Where("id = ?", 1).Update("checksum", "stale").Error)
	assert.ErrorIs(t, gate.MustBeActive(ctx), ErrSchemaChecksumMismatch)

	require.NoError(t, db.Model(&migration.BootstrapState{}).Where("id = ?", 1).Update("status", "migrating").Error)
	assert.ErrorIs(t, gate.MustBeActive(ctx), ErrBootstrapStateInactive)
}

func TestEnsureBootstrapOrg(t *testing.T) {
	db := dbtest.Open(t)
	_, err := migration.Run(context.Background(), db)
	require.NoError(t, err)

	adminKey := apikeydomain.KeyPrefix + "bootstrap0123456789abcdef"
	cfg := config.Config{Bootstrap: config.BootstrapConfig{OrgName: "Acme", AdminKey: adminKey}}
	seeder := seed.New(seed.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       dbtest.Node(t),
		Clock:       clock.Fixed(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)),
		Config:      cfg,
		OrgRepo:     organizationrepo.Provide(),
		APIKeyRepo:  apikeyrepo.Provide(),
		ProductRepo: productrepo.Provide(),
		PPPRepo:     ppprepo.Provide(),
		PromoRepo:   promotionrepo.Provide(),
	})

	for i := 0; i < 2; i++ {
		lc := fxtest.NewLifecycle(t)
		EnsureBootstrapOrg(lc, cfg, seeder, zap.NewNop())
		lc.RequireStart().RequireStop()
	}

	var orgs []organizationdomain.Organization
	require.NoError(t, db.Find(&orgs).Error)
	require.Len(t, orgs, 1)
	assert.Equal(t, "acme", orgs[0].Slug)

	var key apikeydomain.APIKey
	require.NoError(t, db.First(&key, "key_hash = ?", apikeydomain.HashAPIKey(adminKey)).Error)
	assert.Equal(t, orgs[0].ID, key.OrgID)
	assert.Equal(t, apikeydomain.RoleAdmin, key.Role)
}

func TestEnsureBootstrapOrgDisabledWithoutKey(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	EnsureBootstrapOrg(lc, config.Config{}, nil, zap.NewNop())
	lc.RequireStart().RequireStop()
}
