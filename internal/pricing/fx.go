package pricing

import (
	pppdomain "github.com/railzwaylabs/billingcore/internal/ppp/domain"
	"github.com/railzwaylabs/billingcore/internal/pricing/service"
	promotiondomain "github.com/railzwaylabs/billingcore/internal/promotion/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.engine",
	fx.Provide(
		func(svc pppdomain.Service) service.PPPResolver { return svc },
		func(svc promotiondomain.Service) service.PromotionResolver { return svc },
		service.New,
	),
)
