package webhook_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus/testutil"
	analyticsdomain "github.com/railzwaylabs/billingcore/internal/analytics/domain"
	analyticsrepo "github.com/railzwaylabs/billingcore/internal/analytics/repository"
	analyticsservice "github.com/railzwaylabs/billingcore/internal/analytics/service"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"github.com/railzwaylabs/billingcore/internal/clock"
	"github.com/railzwaylabs/billingcore/internal/config"
	customerdomain "github.com/railzwaylabs/billingcore/internal/customer/domain"
	customerrepo "github.com/railzwaylabs/billingcore/internal/customer/repository"
	integrationdomain "github.com/railzwaylabs/billingcore/internal/integration/domain"
	integrationrepo "github.com/railzwaylabs/billingcore/internal/integration/repository"
	integrationservice "github.com/railzwaylabs/billingcore/internal/integration/service"
	"github.com/railzwaylabs/billingcore/internal/observability"
	orderdomain "github.com/railzwaylabs/billingcore/internal/order/domain"
	orderrepo "github.com/railzwaylabs/billingcore/internal/order/repository"
	orderservice "github.com/railzwaylabs/billingcore/internal/order/service"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	"github.com/railzwaylabs/billingcore/internal/payment/adapters"
	"github.com/railzwaylabs/billingcore/internal/payment/adapters/hmac"
	"github.com/railzwaylabs/billingcore/internal/payment/adapters/paddle"
	"github.com/railzwaylabs/billingcore/internal/payment/adapters/stripe"
	"github.com/railzwaylabs/billingcore/internal/payment/domain"
	"github.com/railzwaylabs/billingcore/internal/payment/repository"
	"github.com/railzwaylabs/billingcore/internal/payment/webhook"
	productdomain "github.com/railzwaylabs/billingcore/internal/product/domain"
	productrepo "github.com/railzwaylabs/billingcore/internal/product/repository"
	"github.com/railzwaylabs/billingcore/internal/security/vault"
	subscriptiondomain "github.com/railzwaylabs/billingcore/internal/subscription/domain"
	subscriptionrepo "github.com/railzwaylabs/billingcore/internal/subscription/repository"
	"github.com/railzwaylabs/billingcore/pkg/db/dbtest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const hmacSecret = "whsec_reconciler_test"

var now = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	reconciler domain.Reconciler
	metrics    *observability.Metrics
	redis      *miniredis.Miniredis
	orgID      snowflake.ID
	customer   customerdomain.Customer
	plan       productdomain.PricingPlan
	stripeKey  string
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t,
		&integrationdomain.Integration{},
		&productdomain.Product{},
		&productdomain.PricingPlan{},
		&customerdomain.Customer{},
		&orderdomain.Order{},
		&subscriptiondomain.Subscription{},
		&analyticsdomain.Event{},
		&domain.ProcessedWebhookEvent{},
	)
	node := dbtest.Node(t)
	log := zap.NewNop()
	clk := clock.Fixed(now)

	v, err := vault.NewFactory(vault.Config{AESKey: "reconciler-test-key"})
	require.NoError(t, err)

	orgID := node.Generate()
	product := productdomain.Product{ID: node.Generate(), OrgID: orgID, Name: "Pro", IsActive: true}
	require.NoError(t, db.Create(&product).Error)
	plan := productdomain.PricingPlan{ID: node.Generate(), ProductID: product.ID, Name: "plan1", Price: 1000, Currency: "USD", Interval: productdomain.IntervalMonth, IntervalCount: 1, IsActive: true}
	require.NoError(t, db.Create(&plan).Error)

	ext := "cus_ext_1"
	customer := customerdomain.Customer{ID: node.Generate(), OrgID: orgID, Name: "Ada", Email: "ada@example.com", ExternalID: &ext}
	require.NoError(t, db.Create(&customer).Error)

	integrations := integrationservice.New(integrationservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Vault:       v,
		Repo:        integrationrepo.Provide(),
		ProductRepo: productrepo.Provide(),
	})
	orgCtx := orgcontext.WithOrgID(context.Background(), orgID)
	_, err = integrations.Create(orgCtx, integrationdomain.CreateIntegrationRequest{
		Provider:      integrationdomain.ProviderHMAC,
		WebhookSecret: hmacSecret,
		PlanMapping:   map[string]string{"price_ext_monthly": plan.ID.String()},
	})
	require.NoError(t, err)
	stripeIntegration, err := integrations.Create(orgCtx, integrationdomain.CreateIntegrationRequest{Provider: integrationdomain.ProviderStripe})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	metrics := observability.NewMetrics(observability.NewRegistry())
	orderRepo := orderrepo.Provide()
	customerRepo := customerrepo.Provide()

	reconciler := webhook.NewReconciler(webhook.Params{
		DB:               db,
		Log:              log,
		GenID:            node,
		Clock:            clk,
		Adapters:         adapters.NewRegistry(stripe.NewVerifier(0), paddle.NewVerifier(), hmac.NewVerifier()),
		Guard:            webhook.NewGuard(client, config.Config{}, log),
		Integrations:     integrations,
		CustomerRepo:     customerRepo,
		SubscriptionRepo: subscriptionrepo.Provide(),
		ProductRepo:      productrepo.Provide(),
		OrderRepo:        orderRepo,
		Orders: orderservice.New(orderservice.Params{
			DB:           db,
			Log:          log,
			GenID:        node,
			Clock:        clk,
			Repo:         orderRepo,
			CustomerRepo: customerRepo,
		}),
		Analytics: analyticsservice.New(analyticsservice.Params{
			DB:    db,
			Log:   log,
			GenID: node,
			Clock: clk,
			Repo:  analyticsrepo.Provide(),
		}),
		ProcessedEvents: repository.Provide(),
		Metrics:         metrics,
	})

	return fixture{
		db:         db,
		node:       node,
		reconciler: reconciler,
		metrics:    metrics,
		redis:      mr,
		orgID:      orgID,
		customer:   customer,
		plan:       plan,
		stripeKey:  stripeIntegration.WebhookSecret,
	}
}

// envelope builds a payload signed with the generic hmac scheme.
func envelope(t *testing.T, eventID, eventType string, data map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	sig := hmac.SignHex([]byte(eventType+"."+string(raw)), []byte(hmacSecret))
	return marshalEnvelope(t, eventID, eventType, raw, sig)
}

func marshalEnvelope(t *testing.T, eventID, eventType string, data json.RawMessage, signature string) []byte {
	t.Helper()
	body, err := json.Marshal(domain.Envelope{EventID: eventID, EventType: eventType, Data: data, Signature: signature})
	require.NoError(t, err)
	return body
}

func (f fixture) deliver(payload []byte) (*domain.WebhookResult, error) {
	return f.reconciler.ProcessPaymentWebhook(context.Background(), domain.WebhookRequest{
		OrgID:    f.orgID,
		Provider: integrationdomain.ProviderHMAC,
		Payload:  payload,
	})
}

func (f fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f fixture) subscription(t *testing.T, externalID string) subscriptiondomain.Subscription {
	t.Helper()
	var sub subscriptiondomain.Subscription
	require.NoError(t, f.db.Where("external_id = ?", externalID).First(&sub).Error)
	return sub
}

func (f fixture) seedSubscription(t *testing.T, externalID string, status subscriptiondomain.Status) subscriptiondomain.Subscription {
	t.Helper()
	sub := subscriptiondomain.Subscription{
		ID:                 f.node.Generate(),
		OrgID:              f.orgID,
		CustomerID:         f.customer.ID,
		Status:             status,
		CurrentPeriodStart: now.AddDate(0, -1, 0),
		CurrentPeriodEnd:   now,
		ExternalID:         &externalID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, f.db.Create(&sub).Error)
	return sub
}

func TestSubscriptionCreatedIsIdempotent(t *testing.T) {
	f := setup(t)
	trialEnd := now.AddDate(0, 0, 14)
	payload := envelope(t, "", domain.EventSubscriptionCreated, map[string]any{
		"customerId":     "cus_ext_1",
		"subscriptionId": "sub_ext_1",
		"planId":         "price_ext_monthly",
		"trialEnd":       trialEnd.Format(time.RFC3339),
	})

	first, err := f.deliver(payload)
	require.NoError(t, err)
	require.NotNil(t, first.SubscriptionID)
	assert.Equal(t, domain.StatusSuccess, first.Status)

	second, err := f.deliver(payload)
	require.NoError(t, err)
	assert.Equal(t, *first.SubscriptionID, *second.SubscriptionID)
	assert.Equal(t, int64(1), f.count(t, &subscriptiondomain.Subscription{}))

	sub := f.subscription(t, "sub_ext_1")
	assert.Equal(t, subscriptiondomain.StatusTrialing, sub.Status)
	require.NotNil(t, sub.PlanID)
	assert.Equal(t, f.plan.ID, *sub.PlanID)
	assert.True(t, sub.CurrentPeriodStart.Equal(now))
	assert.True(t, sub.CurrentPeriodEnd.Equal(now.AddDate(0, 1, 0)))
	require.NotNil(t, sub.TrialEnd)
	assert.True(t, sub.TrialEnd.Equal(trialEnd))
}

func TestSubscriptionCreatedWithUnknownPlanLeavesPlanEmpty(t *testing.T) {
	f := setup(t)
	res, err := f.deliver(envelope(t, "", domain.EventSubscriptionCreated, map[string]any{
		"customerId":     "cus_ext_1",
		"subscriptionId": "sub_ext_2",
		"planId":         "price_unmapped",
	}))
	require.NoError(t, err)
	require.NotNil(t, res.SubscriptionID)

	sub := f.subscription(t, "sub_ext_2")
	assert.Nil(t, sub.PlanID)
	assert.Equal(t, subscriptiondomain.StatusActive, sub.Status)
}

func TestInvalidSignatureHasNoSideEffects(t *testing.T) {
	f := setup(t)
	raw := json.RawMessage(`{"customerId":"cus_ext_1","subscriptionId":"sub_ext_1"}`)
	payload := marshalEnvelope(t, "", domain.EventSubscriptionCreated, raw, "deadbeef")

	_, err := f.deliver(payload)
	require.ErrorIs(t, err, apperror.ErrUnauthorized)
	assert.Equal(t, int64(0), f.count(t, &analyticsdomain.Event{}))
	assert.Equal(t, int64(0), f.count(t, &subscriptiondomain.Subscription{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues("hmac", domain.EventSubscriptionCreated, string(apperror.KindUnauthorized))))
}

func TestMalformedPayloadIsRejected(t *testing.T) {
	f := setup(t)
	cases := map[string][]byte{
		"empty":            nil,
		"not json":         []byte("{"),
		"missing customer": envelope(t, "", domain.EventInvoicePaid, map[string]any{"amount": 10}),
		"negative amount":  envelope(t, "", domain.EventInvoicePaid, map[string]any{"customerId": "cus_ext_1", "amount": -1}),
		"bad status":       envelope(t, "", domain.EventSubscriptionUpdated, map[string]any{"customerId": "cus_ext_1", "status": "paused"}),
		"missing signature": marshalEnvelope(t, "", domain.EventInvoicePaid,
			json.RawMessage(`{"customerId":"cus_ext_1"}`), ""),
	}
	for name, payload := range cases {
		_, err := f.deliver(payload)
		assert.ErrorIs(t, err, apperror.ErrInvalidPayload, name)
	}
	assert.Equal(t, int64(0), f.count(t, &analyticsdomain.Event{}))
}

func TestUnsupportedEventTypeIsAudited(t *testing.T) {
	f := setup(t)
	_, err := f.deliver(envelope(t, "", "refund.issued", map[string]any{"customerId": "cus_ext_1"}))
	require.ErrorIs(t, err, domain.ErrUnsupportedEventType)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	var events []analyticsdomain.Event
	require.NoError(t, f.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "webhook:refund.issued", events[0].EventType)
	assert.Equal(t, f.customer.ID, *events[0].CustomerID)
}

func TestUnknownCustomerIsNotFound(t *testing.T) {
	f := setup(t)
	_, err := f.deliver(envelope(t, "", domain.EventInvoicePaid, map[string]any{"customerId": "cus_missing"}))
	require.ErrorIs(t, err, customerdomain.ErrCustomerNotFound)
	assert.Equal(t, int64(0), f.count(t, &analyticsdomain.Event{}))
}

func TestInvoicePaidCompletesOrderOnce(t *testing.T) {
	f := setup(t)
	order := orderdomain.Order{
		ID:          f.node.Generate(),
		OrgID:       f.orgID,
		CustomerID:  f.customer.ID,
		PlanID:      f.plan.ID,
		Status:      orderdomain.StatusPending,
		BaseAmount:  1000,
		FinalAmount: 1000,
		Currency:    "USD",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, f.db.Create(&order).Error)
	payload := envelope(t, "", domain.EventInvoicePaid, map[string]any{"customerId": "cus_ext_1", "amount": 1000, "currency": "USD"})

	res, err := f.deliver(payload)
	require.NoError(t, err)
	require.NotNil(t, res.OrderID)
	assert.Equal(t, order.ID, *res.OrderID)

	var stored orderdomain.Order
	require.NoError(t, f.db.First(&stored, order.ID).Error)
	assert.Equal(t, orderdomain.StatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	var customer customerdomain.Customer
	require.NoError(t, f.db.First(&customer, f.customer.ID).Error)
	assert.Equal(t, int64(1), customer.OrdersCount)
	assert.Equal(t, int64(1000), customer.TotalSpent)

	again, err := f.deliver(payload)
	require.NoError(t, err)
	assert.Nil(t, again.OrderID)

	require.NoError(t, f.db.First(&customer, f.customer.ID).Error)
	assert.Equal(t, int64(1), customer.OrdersCount)
	assert.Equal(t, int64(1000), customer.TotalSpent)
	require.NoError(t, f.db.First(&stored, order.ID).Error)
	assert.Equal(t, orderdomain.StatusCompleted, stored.Status)
	assert.Equal(t, int64(2), f.count(t, &analyticsdomain.Event{}))
}

func TestInvoicePaidSkipsMismatchedAmountAndActivatesSubscription(t *testing.T) {
	f := setup(t)
	order := orderdomain.Order{ID: f.node.Generate(), OrgID: f.orgID, CustomerID: f.customer.ID, PlanID: f.plan.ID,
		Status: orderdomain.StatusPending, BaseAmount: 1000, FinalAmount: 1000, Currency: "USD", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.db.Create(&order).Error)
	f.seedSubscription(t, "sub_ext_1", subscriptiondomain.StatusPastDue)
	periodEnd := now.AddDate(0, 1, 0)

	res, err := f.deliver(envelope(t, "", domain.EventInvoicePaid, map[string]any{
		"customerId":     "cus_ext_1",
		"subscriptionId": "sub_ext_1",
		"amount":         999,
		"periodStart":    now.Format(time.RFC3339),
		"periodEnd":      periodEnd.Format(time.RFC3339),
	}))
	require.NoError(t, err)
	assert.Nil(t, res.OrderID)
	require.NotNil(t, res.SubscriptionID)

	sub := f.subscription(t, "sub_ext_1")
	assert.Equal(t, subscriptiondomain.StatusActive, sub.Status)
	assert.True(t, sub.CurrentPeriodEnd.Equal(periodEnd))

	var stored orderdomain.Order
	require.NoError(t, f.db.First(&stored, order.ID).Error)
	assert.Equal(t, orderdomain.StatusPending, stored.Status)
}

func TestPaymentFailedRequiresSubscriptionID(t *testing.T) {
	f := setup(t)
	_, err := f.deliver(envelope(t, "", domain.EventInvoicePaymentFailed, map[string]any{"customerId": "cus_ext_1"}))
	require.ErrorIs(t, err, domain.ErrMissingSubscriptionID)
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	// an unknown subscription is skipped
	res, err := f.deliver(envelope(t, "", domain.EventInvoicePaymentFailed, map[string]any{"customerId": "cus_ext_1", "subscriptionId": "sub_none"}))
	require.NoError(t, err)
	assert.Nil(t, res.SubscriptionID)
}

func TestEventIDRedeliveryReturnsStoredResult(t *testing.T) {
	f := setup(t)
	sub := f.seedSubscription(t, "sub_ext_1", subscriptiondomain.StatusActive)
	payload := envelope(t, "evt_1", domain.EventInvoicePaymentFailed, map[string]any{"customerId": "cus_ext_1", "subscriptionId": "sub_ext_1"})

	first, err := f.deliver(payload)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Equal(t, subscriptiondomain.StatusPastDue, f.subscription(t, "sub_ext_1").Status)

	require.NoError(t, f.db.Model(&subscriptiondomain.Subscription{}).Where("id = ?", sub.ID).
		Update("status", subscriptiondomain.StatusActive).Error)

	second, err := f.deliver(payload)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	require.NotNil(t, second.SubscriptionID)
	assert.Equal(t, sub.ID, *second.SubscriptionID)
	assert.Equal(t, subscriptiondomain.StatusActive, f.subscription(t, "sub_ext_1").Status)
	assert.Equal(t, int64(1), f.count(t, &domain.ProcessedWebhookEvent{}))
}

func TestSubscriptionLifecycle(t *testing.T) {
	f := setup(t)

	_, err := f.deliver(envelope(t, "", domain.EventSubscriptionUpdated, map[string]any{"customerId": "cus_ext_1", "subscriptionId": "sub_ext_1"}))
	require.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionNotFound)

	trialEnd := now.AddDate(0, 0, 7)
	sub := f.seedSubscription(t, "sub_ext_1", subscriptiondomain.StatusTrialing)
	require.NoError(t, f.db.Model(&sub).Update("trial_end", trialEnd).Error)

	_, err = f.deliver(envelope(t, "", domain.EventSubscriptionUpdated, map[string]any{
		"customerId":     "cus_ext_1",
		"subscriptionId": "sub_ext_1",
		"planId":         "price_ext_monthly",
		"metadata":       map[string]any{"seats": "5"},
	}))
	require.NoError(t, err)
	updated := f.subscription(t, "sub_ext_1")
	require.NotNil(t, updated.PlanID)
	assert.Equal(t, f.plan.ID, *updated.PlanID)
	assert.Equal(t, subscriptiondomain.StatusTrialing, updated.Status)
	assert.Equal(t, "5", updated.Metadata["seats"])

	_, err = f.deliver(envelope(t, "", domain.EventSubscriptionTrialEnd, map[string]any{"customerId": "cus_ext_1", "subscriptionId": "sub_ext_1"}))
	require.NoError(t, err)
	updated = f.subscription(t, "sub_ext_1")
	assert.Equal(t, subscriptiondomain.StatusActive, updated.Status)
	assert.Nil(t, updated.TrialEnd)

	_, err = f.deliver(envelope(t, "", domain.EventSubscriptionCancelled, map[string]any{
		"customerId":        "cus_ext_1",
		"subscriptionId":    "sub_ext_1",
		"cancelAtPeriodEnd": true,
	}))
	require.NoError(t, err)
	updated = f.subscription(t, "sub_ext_1")
	assert.Equal(t, subscriptiondomain.StatusCancelled, updated.Status)
	assert.True(t, updated.CancelAtPeriodEnd)
	assert.Nil(t, updated.CancelledAt)

	_, err = f.deliver(envelope(t, "", domain.EventSubscriptionCancelled, map[string]any{
		"customerId":        "cus_ext_1",
		"subscriptionId":    "sub_ext_1",
		"cancelAtPeriodEnd": false,
	}))
	require.NoError(t, err)
	updated = f.subscription(t, "sub_ext_1")
	require.NotNil(t, updated.CancelledAt)
	assert.True(t, updated.CancelledAt.Equal(now))

	// a late payment failure never revives a cancelled subscription
	_, err = f.deliver(envelope(t, "", domain.EventInvoicePaymentFailed, map[string]any{"customerId": "cus_ext_1", "subscriptionId": "sub_ext_1"}))
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusCancelled, f.subscription(t, "sub_ext_1").Status)
}

func TestConcurrentDeliveryForSameCustomerConflicts(t *testing.T) {
	f := setup(t)
	key := "billingcore:webhook:inflight:" + f.orgID.String() + ":cus_ext_1"
	require.NoError(t, f.redis.Set(key, "other-delivery"))

	_, err := f.deliver(envelope(t, "", domain.EventInvoicePaid, map[string]any{"customerId": "cus_ext_1"}))
	require.ErrorIs(t, err, domain.ErrEventInProgress)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, int64(0), f.count(t, &analyticsdomain.Event{}))

	f.redis.Del(key)
	_, err = f.deliver(envelope(t, "", domain.EventInvoicePaid, map[string]any{"customerId": "cus_ext_1"}))
	require.NoError(t, err)
	assert.False(t, f.redis.Exists(key))
	assert.Equal(t, int64(1), f.count(t, &analyticsdomain.Event{}))
}

func TestStripeSignedDelivery(t *testing.T) {
	f := setup(t)
	raw := json.RawMessage(`{"customerId":"cus_ext_1","subscriptionId":"sub_stripe_1"}`)
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(domain.EventSubscriptionCreated + "." + string(raw)),
		Secret:    f.stripeKey,
		Timestamp: time.Now(),
	})

	res, err := f.reconciler.ProcessPaymentWebhook(context.Background(), domain.WebhookRequest{
		OrgID:   f.orgID,
		Payload: marshalEnvelope(t, "", domain.EventSubscriptionCreated, raw, signed.Header),
	})
	require.NoError(t, err)
	require.NotNil(t, res.SubscriptionID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues("stripe", domain.EventSubscriptionCreated, "success")))
}

func TestMissingIntegrationIsNotFound(t *testing.T) {
	f := setup(t)
	_, err := f.reconciler.ProcessPaymentWebhook(context.Background(), domain.WebhookRequest{
		OrgID:    f.orgID,
		Provider: integrationdomain.ProviderPaddle,
		Payload:  envelope(t, "", domain.EventInvoicePaid, map[string]any{"customerId": "cus_ext_1"}),
	})
	require.ErrorIs(t, err, apperror.ErrNotFound)
}
