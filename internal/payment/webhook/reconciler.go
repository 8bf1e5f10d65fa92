package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	analyticsdomain "github.com/railzwaylabs/billingcore/internal/analytics/domain"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"github.com/railzwaylabs/billingcore/internal/clock"
	customerdomain "github.com/railzwaylabs/billingcore/internal/customer/domain"
	integrationdomain "github.com/railzwaylabs/billingcore/internal/integration/domain"
	"github.com/railzwaylabs/billingcore/internal/observability"
	orderdomain "github.com/railzwaylabs/billingcore/internal/order/domain"
	"github.com/railzwaylabs/billingcore/internal/payment/adapters"
	"github.com/railzwaylabs/billingcore/internal/payment/domain"
	productdomain "github.com/railzwaylabs/billingcore/internal/product/domain"
	subscriptiondomain "github.com/railzwaylabs/billingcore/internal/subscription/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	tracer   = otel.Tracer("github.com/railzwaylabs/billingcore/internal/payment/webhook")
	validate = validator.New(validator.WithRequiredStructEnabled())
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	Adapters         *adapters.Registry
	Guard            *Guard
	Integrations     integrationdomain.Service
	CustomerRepo     customerdomain.Repository
	SubscriptionRepo subscriptiondomain.Repository
	ProductRepo      productdomain.Repository
	OrderRepo        orderdomain.Repository
	Orders           orderdomain.Service
	Analytics        analyticsdomain.Service
	ProcessedEvents  domain.ProcessedEventRepository
	Metrics          *observability.Metrics `optional:"true"`
}

// Reconciler applies one signed provider event to subscriptions, orders
// and customer aggregates.
type Reconciler struct {
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	adapters         *adapters.Registry
	guard            *Guard
	integrations     integrationdomain.Service
	customerRepo     customerdomain.Repository
	subscriptionRepo subscriptiondomain.Repository
	productRepo      productdomain.Repository
	orderRepo        orderdomain.Repository
	orders           orderdomain.Service
	analytics        analyticsdomain.Service
	processed        domain.ProcessedEventRepository
	metrics          *observability.Metrics
}

func NewReconciler(p Params) domain.Reconciler {
	return &Reconciler{
		db:               p.DB,
		log:              p.Log.Named("payment.webhook"),
		genID:            p.GenID,
		clock:            p.Clock,
		adapters:         p.Adapters,
		guard:            p.Guard,
		integrations:     p.Integrations,
		customerRepo:     p.CustomerRepo,
		subscriptionRepo: p.SubscriptionRepo,
		productRepo:      p.ProductRepo,
		orderRepo:        p.OrderRepo,
		orders:           p.Orders,
		analytics:        p.Analytics,
		processed:        p.ProcessedEvents,
		metrics:          p.Metrics,
	}
}

// ProcessPaymentWebhook runs the pipeline: shape validation, secret
// resolution, signature verification, customer resolution, audit, then
// dispatch inside one transaction. Steps before the audit never write.
func (r *Reconciler) ProcessPaymentWebhook(ctx context.Context, req domain.WebhookRequest) (result *domain.WebhookResult, err error) {
	provider := integrationdomain.NormalizeProvider(req.Provider)
	eventLabel := "unknown"
	started := time.Now()

	ctx, span := tracer.Start(ctx, "webhook.ProcessPaymentWebhook")
	span.SetAttributes(
		attribute.String("org_id", req.OrgID.String()),
		attribute.String("provider", provider),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.log.Warn("webhook rejected",
				zap.String("org_id", req.OrgID.String()),
				zap.String("provider", provider),
				zap.String("event_type", eventLabel),
				zap.Error(err))
			r.log.Debug("rejected webhook payload", zap.ByteString("payload", maskPayload(req.Payload)))
		}
		span.End()
		r.observe(provider, eventLabel, started, err)
	}()

	// 1. shape
	env, data, err := parseEnvelope(req.Payload)
	if err != nil {
		return nil, err
	}
	if supported(env.EventType) {
		eventLabel = env.EventType
	} else {
		eventLabel = "unsupported"
	}
	span.SetAttributes(attribute.String("event_type", env.EventType))

	// 2. secret
	integration, secret, err := r.integrations.ResolveWebhookSecret(ctx, req.OrgID, provider)
	if err != nil {
		return nil, err
	}

	// 3. signature
	verifier, ok := r.adapters.Verifier(provider)
	if !ok {
		return nil, domain.ErrUnsupportedProvider
	}
	if err := verifier.Verify(ctx, env.SignedContent(), env.Signature, secret); err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			return nil, domain.ErrInvalidSignature
		}
		return nil, err
	}

	// 4. customer
	customer, err := r.customerRepo.FindByExternalID(ctx, r.db, req.OrgID, data.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrCustomerNotFound
	}

	// A busy delivery is rejected before the audit so that only the
	// redelivery that actually runs is recorded.
	release, err := r.guard.Acquire(ctx, req.OrgID.String(), data.CustomerID)
	if err != nil {
		return nil, err
	}
	defer release()

	// 5. audit, committed on its own
	if _, auditErr := r.analytics.Record(ctx, req.OrgID, &customer.ID, "webhook:"+env.EventType,
		map[string]any{"payload": maskedData(env.Data)}); auditErr != nil {
		r.log.Error("failed to record webhook audit event",
			zap.String("org_id", req.OrgID.String()),
			zap.String("event_type", env.EventType),
			zap.Error(auditErr))
	}

	// 6. dispatch
	if !supported(env.EventType) {
		return nil, domain.ErrUnsupportedEventType
	}

	d := &dispatch{
		Reconciler:  r,
		integration: integration,
		customer:    customer,
		data:        data,
		now:         r.clock.Now(ctx),
		result:      &domain.WebhookResult{EventType: env.EventType, Status: domain.StatusSuccess},
	}
	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if env.EventID != "" {
			prior, err := r.processed.Find(ctx, tx, req.OrgID, provider, env.EventID)
			if err != nil {
				return err
			}
			if prior != nil {
				d.result = replayed(prior)
				return nil
			}
		}

		if err := d.apply(ctx, tx, env.EventType); err != nil {
			return err
		}

		if env.EventID == "" {
			return nil
		}
		return r.processed.Insert(ctx, tx, &domain.ProcessedWebhookEvent{
			ID:        r.genID.Generate(),
			OrgID:     req.OrgID,
			Provider:  provider,
			EventID:   env.EventID,
			EventType: env.EventType,
			Result:    datatypes.NewJSONType(*d.result),
			CreatedAt: d.now,
		})
	})
	if txErr != nil {
		// A concurrent delivery of the same event id may have won the
		// ledger insert; its stored result is the answer.
		if env.EventID != "" {
			if prior, findErr := r.processed.Find(ctx, r.db, req.OrgID, provider, env.EventID); findErr == nil && prior != nil {
				return replayed(prior), nil
			}
		}
		return nil, txErr
	}

	r.log.Info("webhook processed",
		zap.String("org_id", req.OrgID.String()),
		zap.String("provider", provider),
		zap.String("event_type", env.EventType),
		zap.String("customer_id", customer.ID.String()),
		zap.Bool("replayed", d.result.Replayed))
	return d.result, nil
}

func (r *Reconciler) observe(provider, eventType string, started time.Time, err error) {
	if r.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		if kind := apperror.KindOf(err); kind != "" {
			outcome = string(kind)
		}
	}
	r.metrics.WebhookEvents.WithLabelValues(provider, eventType, outcome).Inc()
	r.metrics.WebhookDuration.WithLabelValues(provider).Observe(time.Since(started).Seconds())
}

func parseEnvelope(payload []byte) (*domain.Envelope, *domain.EventData, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil, domain.ErrInvalidPayload
	}

	var env domain.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if err := validate.Struct(&env); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	var data domain.EventData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, nil, fmt.Errorf("%w: data: %v", domain.ErrInvalidPayload, err)
	}
	if err := validate.Struct(&data); err != nil {
		return nil, nil, fmt.Errorf("%w: data: %v", domain.ErrInvalidPayload, err)
	}
	if data.PeriodStart != nil && data.PeriodEnd != nil && data.PeriodEnd.Before(*data.PeriodStart) {
		return nil, nil, fmt.Errorf("%w: data: periodEnd before periodStart", domain.ErrInvalidPayload)
	}
	return &env, &data, nil
}

func supported(eventType string) bool {
	switch eventType {
	case domain.EventInvoicePaid,
		domain.EventInvoicePaymentFailed,
		domain.EventSubscriptionCreated,
		domain.EventSubscriptionUpdated,
		domain.EventSubscriptionCancelled,
		domain.EventSubscriptionTrialEnd:
		return true
	}
	return false
}

func replayed(prior *domain.ProcessedWebhookEvent) *domain.WebhookResult {
	res := prior.Result.Data()
	res.Replayed = true
	return &res
}
