package vault

import (
	"github.com/railzwaylabs/billingcore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const developmentKey = "billingcore-development-only-key"

var Module = fx.Module("security.vault",
	fx.Provide(
		func(cfg config.Config, log *zap.Logger) (Provider, error) {
			key := cfg.Vault.AESKey
			if key == "" && !cfg.IsProduction() {
				log.Warn("VAULT_AES_KEY not set, sealing secrets with the development key")
				key = developmentKey
			}
			return NewFactory(Config{
				Provider:     cfg.Vault.Provider,
				AESKey:       key,
				PreviousKeys: cfg.Vault.PreviousKeys,
			})
		},
	),
)
