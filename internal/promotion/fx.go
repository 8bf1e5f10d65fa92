package promotion

import (
	"github.com/railzwaylabs/billingcore/internal/promotion/repository"
	"github.com/railzwaylabs/billingcore/internal/promotion/service"
	"go.uber.org/fx"
)

var Module = fx.Module("promotion.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
