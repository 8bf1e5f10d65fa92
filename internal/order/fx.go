package order

import (
	"github.com/railzwaylabs/billingcore/internal/order/repository"
	"github.com/railzwaylabs/billingcore/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
