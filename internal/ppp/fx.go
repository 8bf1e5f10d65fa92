package ppp

import (
	"github.com/railzwaylabs/billingcore/internal/ppp/repository"
	"github.com/railzwaylabs/billingcore/internal/ppp/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ppp.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
