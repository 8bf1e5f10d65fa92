package migration

import (
	analyticsdomain "github.com/railzwaylabs/billingcore/internal/analytics/domain"
	apikeydomain "github.com/railzwaylabs/billingcore/internal/apikey/domain"
	countrydomain "github.com/railzwaylabs/billingcore/internal/country/domain"
	customerdomain "github.com/railzwaylabs/billingcore/internal/customer/domain"
	entitlementdomain "github.com/railzwaylabs/billingcore/internal/entitlement/domain"
	integrationdomain "github.com/railzwaylabs/billingcore/internal/integration/domain"
	orderdomain "github.com/railzwaylabs/billingcore/internal/order/domain"
	organizationdomain "github.com/railzwaylabs/billingcore/internal/organization/domain"
	paymentdomain "github.com/railzwaylabs/billingcore/internal/payment/domain"
	pppdomain "github.com/railzwaylabs/billingcore/internal/ppp/domain"
	productdomain "github.com/railzwaylabs/billingcore/internal/product/domain"
	promotiondomain "github.com/railzwaylabs/billingcore/internal/promotion/domain"
	subscriptiondomain "github.com/railzwaylabs/billingcore/internal/subscription/domain"
)

// Models lists every persisted type in dependency order. Drivers without
// embedded SQL migrations build their schema from it.
func Models() []any {
	return []any{
		&organizationdomain.Organization{},
		&customerdomain.Customer{},
		&productdomain.Product{},
		&productdomain.PricingPlan{},
		&countrydomain.Country{},
		&pppdomain.Rule{},
		&promotiondomain.Promotion{},
		&promotiondomain.Usage{},
		&orderdomain.Order{},
		&subscriptiondomain.Subscription{},
		&integrationdomain.Integration{},
		&analyticsdomain.Event{},
		&paymentdomain.ProcessedWebhookEvent{},
		&entitlementdomain.Feature{},
		&entitlementdomain.PlanFeature{},
		&entitlementdomain.Entitlement{},
		&apikeydomain.APIKey{},
		&BootstrapState{},
	}
}
