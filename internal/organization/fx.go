package organization

import (
	"github.com/railzwaylabs/billingcore/internal/organization/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.repository",
	fx.Provide(repository.Provide),
)
