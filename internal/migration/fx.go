package migration

import (
	"context"

	"github.com/railzwaylabs/billingcore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module migrates on start when DB_AUTO_MIGRATE is set. The `migrate`
// command is the explicit path.
var Module = fx.Module("migrations",
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, conn *gorm.DB, log *zap.Logger) {
		if !cfg.DB.AutoMigrate {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				state, err := Run(ctx, conn)
				if err != nil {
					return err
				}
				log.Info("schema migrated", zap.String("schema_version", state.SchemaVersion))
				return nil
			},
		})
	}),
)
