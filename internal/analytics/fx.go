package analytics

import (
	"github.com/railzwaylabs/billingcore/internal/analytics/repository"
	"github.com/railzwaylabs/billingcore/internal/analytics/service"
	"go.uber.org/fx"
)

var Module = fx.Module("analytics.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
