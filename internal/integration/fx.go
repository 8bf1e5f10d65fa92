package integration

import (
	"github.com/railzwaylabs/billingcore/internal/integration/repository"
	"github.com/railzwaylabs/billingcore/internal/integration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("integration.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
