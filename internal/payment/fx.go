package payment

import (
	"github.com/railzwaylabs/billingcore/internal/config"
	"github.com/railzwaylabs/billingcore/internal/payment/adapters"
	"github.com/railzwaylabs/billingcore/internal/payment/adapters/hmac"
	"github.com/railzwaylabs/billingcore/internal/payment/adapters/paddle"
	"github.com/railzwaylabs/billingcore/internal/payment/adapters/stripe"
	"github.com/railzwaylabs/billingcore/internal/payment/repository"
	"github.com/railzwaylabs/billingcore/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config) *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewVerifier(cfg.Webhook.SignatureTolerance),
			paddle.NewVerifier(),
			hmac.NewVerifier(),
		)
	}),
	fx.Provide(webhook.NewGuard),
	fx.Provide(webhook.NewReconciler),
)
