package bootstrap

import (
	"context"

	"github.com/railzwaylabs/billingcore/internal/config"
	"github.com/railzwaylabs/billingcore/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// EnforceSchemaGate fails startup when the schema is not active. Hooks run
// in registration order, so an auto-migration registered earlier has
// already finished.
func EnforceSchemaGate(lc fx.Lifecycle, gate SchemaGate) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return gate.MustBeActive(ctx)
		},
	})
}

// EnsureBootstrapOrg seeds the default organization and its admin key on
// start when BOOTSTRAP_ADMIN_KEY is set. Meant for single-tenant and dev
// deployments that cannot run `billingcore seed` by hand.
func EnsureBootstrapOrg(lc fx.Lifecycle, cfg config.Config, seeder *seed.Seeder, log *zap.Logger) {
	if cfg.Bootstrap.AdminKey == "" {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			res, err := seeder.Run(ctx, seed.Options{})
			if err != nil {
				return err
			}
			log.Info("bootstrap organization ensured",
				zap.String("org_id", res.Org.ID.String()),
				zap.String("org_slug", res.Org.Slug))
			return nil
		},
	})
}
