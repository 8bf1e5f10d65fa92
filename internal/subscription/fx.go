package subscription

import (
	"github.com/railzwaylabs/billingcore/internal/subscription/repository"
	"github.com/railzwaylabs/billingcore/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
