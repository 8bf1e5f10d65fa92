package country

import (
	"github.com/railzwaylabs/billingcore/internal/country/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("country.repository",
	fx.Provide(repository.Provide),
)
