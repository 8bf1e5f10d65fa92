package webhook_test

import (
	"context"
	"testing"

	analyticsdomain "github.com/railzwaylabs/billingcore/internal/analytics/domain"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"github.com/railzwaylabs/billingcore/internal/clock"
	countrydomain "github.com/railzwaylabs/billingcore/internal/country/domain"
	countryrepo "github.com/railzwaylabs/billingcore/internal/country/repository"
	customerdomain "github.com/railzwaylabs/billingcore/internal/customer/domain"
	customerrepo "github.com/railzwaylabs/billingcore/internal/customer/repository"
	orderdomain "github.com/railzwaylabs/billingcore/internal/order/domain"
	orderrepo "github.com/railzwaylabs/billingcore/internal/order/repository"
	orderservice "github.com/railzwaylabs/billingcore/internal/order/service"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	"github.com/railzwaylabs/billingcore/internal/payment/domain"
	pppdomain "github.com/railzwaylabs/billingcore/internal/ppp/domain"
	ppprepo "github.com/railzwaylabs/billingcore/internal/ppp/repository"
	pppservice "github.com/railzwaylabs/billingcore/internal/ppp/service"
	pricingdomain "github.com/railzwaylabs/billingcore/internal/pricing/domain"
	pricingservice "github.com/railzwaylabs/billingcore/internal/pricing/service"
	productrepo "github.com/railzwaylabs/billingcore/internal/product/repository"
	promotiondomain "github.com/railzwaylabs/billingcore/internal/promotion/domain"
	promotionrepo "github.com/railzwaylabs/billingcore/internal/promotion/repository"
	promotionservice "github.com/railzwaylabs/billingcore/internal/promotion/service"
	subscriptiondomain "github.com/railzwaylabs/billingcore/internal/subscription/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubscriptionBranchesRequireKnownSubscription(t *testing.T) {
	branches := []string{
		domain.EventSubscriptionUpdated,
		domain.EventSubscriptionCancelled,
		domain.EventSubscriptionTrialEnd,
	}
	for _, eventType := range branches {
		t.Run(eventType, func(t *testing.T) {
			f := setup(t)

			_, err := f.deliver(envelope(t, "", eventType, map[string]any{"customerId": "cus_ext_1"}))
			require.ErrorIs(t, err, domain.ErrMissingSubscriptionID)
			assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))

			_, err = f.deliver(envelope(t, "", eventType, map[string]any{"customerId": "cus_ext_1", "subscriptionId": "sub_none"}))
			require.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionNotFound)
			assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

			assert.Equal(t, int64(0), f.count(t, &subscriptiondomain.Subscription{}))
			assert.Equal(t, int64(2), f.count(t, &analyticsdomain.Event{}))
		})
	}
}

func TestSubscriptionCreatedWithForeignExternalIDConflicts(t *testing.T) {
	f := setup(t)
	owned := f.seedSubscription(t, "sub_shared", subscriptiondomain.StatusActive)

	ext := "cus_ext_2"
	other := customerdomain.Customer{ID: f.node.Generate(), OrgID: f.orgID, Name: "Grace", Email: "grace@example.com", ExternalID: &ext}
	require.NoError(t, f.db.Create(&other).Error)

	_, err := f.deliver(envelope(t, "", domain.EventSubscriptionCreated, map[string]any{
		"customerId":     "cus_ext_2",
		"subscriptionId": "sub_shared",
	}))
	require.ErrorIs(t, err, subscriptiondomain.ErrDuplicateExternalID)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	assert.Equal(t, int64(1), f.count(t, &subscriptiondomain.Subscription{}))
	stored := f.subscription(t, "sub_shared")
	assert.Equal(t, owned.ID, stored.ID)
	assert.Equal(t, f.customer.ID, stored.CustomerID)
}

func TestQuotedOrderIsCompletedByInvoicePaid(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.AutoMigrate(&countrydomain.Country{}, &pppdomain.Rule{}, &promotiondomain.Promotion{}, &promotiondomain.Usage{}))
	require.NoError(t, f.db.Create(&countrydomain.Country{
		Code: "US", Name: "United States", Currency: "USD", PPPFactor: decimal.NewFromInt(1), DiscountPercentage: 0, IsActive: true,
	}).Error)

	log := zap.NewNop()
	ppp := pppservice.New(pppservice.Params{DB: f.db, Log: log, GenID: f.node, Clock: clock.Fixed(now), Repo: ppprepo.Provide(), CountryRepo: countryrepo.Provide()})
	promotions := promotionservice.New(promotionservice.Params{DB: f.db, Log: log, GenID: f.node, Clock: clock.Fixed(now), Repo: promotionrepo.Provide(), ProductRepo: productrepo.Provide()})
	engine := pricingservice.New(pricingservice.Params{DB: f.db, Log: log, ProductRepo: productrepo.Provide(), PPP: ppp, Promotions: promotions})
	orders := orderservice.New(orderservice.Params{
		DB:           f.db,
		Log:          log,
		GenID:        f.node,
		Clock:        clock.Fixed(now),
		Repo:         orderrepo.Provide(),
		CustomerRepo: customerrepo.Provide(),
		Pricing:      engine,
		Promotions:   promotions,
	})

	quote, err := engine.CalculatePrice(context.Background(), pricingdomain.PriceRequest{OrgID: f.orgID, PlanID: f.plan.ID, CountryCode: "US"})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), quote.BasePrice)
	assert.Equal(t, int64(0), quote.PPPDiscount)
	assert.Equal(t, int64(0), quote.PromotionDiscount)
	assert.Equal(t, int64(1000), quote.FinalPrice)

	ctx := orgcontext.WithOrgID(context.Background(), f.orgID)
	order, err := orders.Create(ctx, orderdomain.CreateOrderRequest{CustomerID: f.customer.ID, PlanID: f.plan.ID, CountryCode: "US"})
	require.NoError(t, err)
	assert.Equal(t, quote.FinalPrice, order.FinalAmount)

	res, err := f.deliver(envelope(t, "", domain.EventInvoicePaid, map[string]any{"customerId": "cus_ext_1", "amount": 1000}))
	require.NoError(t, err)
	require.NotNil(t, res.OrderID)
	assert.Equal(t, order.ID, *res.OrderID)

	var stored orderdomain.Order
	require.NoError(t, f.db.First(&stored, order.ID).Error)
	assert.Equal(t, orderdomain.StatusCompleted, stored.Status)

	var customer customerdomain.Customer
	require.NoError(t, f.db.First(&customer, f.customer.ID).Error)
	assert.Equal(t, int64(1), customer.OrdersCount)
	assert.Equal(t, int64(1000), customer.TotalSpent)
}
