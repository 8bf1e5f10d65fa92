package webhook

import (
	"context"
	"errors"
	"time"

	customerdomain "github.com/railzwaylabs/billingcore/internal/customer/domain"
	integrationdomain "github.com/railzwaylabs/billingcore/internal/integration/domain"
	paymentdomain "github.com/railzwaylabs/billingcore/internal/payment/domain"
	subscriptiondomain "github.com/railzwaylabs/billingcore/internal/subscription/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// dispatch carries the state of one event through its branch.
type dispatch struct {
	*Reconciler
	integration *integrationdomain.Integration
	customer    *customerdomain.Customer
	data        *paymentdomain.EventData
	now         time.Time
	result      *paymentdomain.WebhookResult
}

func (d *dispatch) apply(ctx context.Context, tx *gorm.DB, eventType string) error {
	switch eventType {
	case paymentdomain.EventInvoicePaid:
		return d.invoicePaid(ctx, tx)
	case paymentdomain.EventInvoicePaymentFailed:
		return d.invoicePaymentFailed(ctx, tx)
	case paymentdomain.EventSubscriptionCreated:
		return d.subscriptionCreated(ctx, tx)
	case paymentdomain.EventSubscriptionUpdated:
		return d.subscriptionUpdated(ctx, tx)
	case paymentdomain.EventSubscriptionCancelled:
		return d.subscriptionCancelled(ctx, tx)
	case paymentdomain.EventSubscriptionTrialEnd:
		return d.trialEnded(ctx, tx)
	default:
		return paymentdomain.ErrUnsupportedEventType
	}
}

func (d *dispatch) invoicePaid(ctx context.Context, tx *gorm.DB) error {
	order, err := d.orderRepo.FindPendingForCustomer(ctx, tx, d.customer.OrgID, d.customer.ID, d.data.Amount)
	if err != nil {
		return err
	}
	if order != nil {
		var paid int64
		if d.data.Amount != nil {
			paid = *d.data.Amount
		}
		completed, err := d.orders.Complete(ctx, tx, order, paid)
		if err != nil {
			return err
		}
		if completed {
			d.result.OrderID = &order.ID
		}
	}

	if d.data.SubscriptionID == "" {
		return nil
	}
	sub, err := d.findSubscription(ctx, tx)
	if err != nil || sub == nil {
		return err
	}
	if sub.Status == subscriptiondomain.StatusCancelled {
		d.log.Info("invoice paid for cancelled subscription, skipping",
			zap.String("subscription_id", sub.ID.String()))
		return nil
	}

	sub.Status = subscriptiondomain.StatusActive
	if d.data.PeriodStart != nil {
		sub.CurrentPeriodStart = d.data.PeriodStart.UTC()
	}
	if d.data.PeriodEnd != nil {
		sub.CurrentPeriodEnd = d.data.PeriodEnd.UTC()
	}
	return d.save(ctx, tx, sub)
}

func (d *dispatch) invoicePaymentFailed(ctx context.Context, tx *gorm.DB) error {
	if d.data.SubscriptionID == "" {
		return paymentdomain.ErrMissingSubscriptionID
	}
	sub, err := d.findSubscription(ctx, tx)
	if err != nil || sub == nil {
		return err
	}
	if sub.Status == subscriptiondomain.StatusCancelled {
		return nil
	}
	sub.Status = subscriptiondomain.StatusPastDue
	return d.save(ctx, tx, sub)
}

func (d *dispatch) subscriptionCreated(ctx context.Context, tx *gorm.DB) error {
	if d.data.SubscriptionID != "" {
		existing, err := d.findSubscription(ctx, tx)
		if err != nil {
			return err
		}
		if existing != nil {
			d.result.SubscriptionID = &existing.ID
			return nil
		}
	}

	planID := d.integration.MapPlan(d.data.PlanID)
	start := d.now
	if d.data.PeriodStart != nil {
		start = d.data.PeriodStart.UTC()
	}
	end := start
	switch {
	case d.data.PeriodEnd != nil:
		end = d.data.PeriodEnd.UTC()
	case planID != nil:
		plan, err := d.productRepo.FindPlanForOrg(ctx, tx, d.customer.OrgID, *planID)
		if err != nil {
			return err
		}
		if plan != nil {
			end = plan.PeriodEnd(start)
		} else {
			planID = nil
		}
	}

	sub := &subscriptiondomain.Subscription{
		ID:                 d.genID.Generate(),
		OrgID:              d.customer.OrgID,
		CustomerID:         d.customer.ID,
		PlanID:             planID,
		Status:             subscriptiondomain.StatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		Metadata:           datatypes.JSONMap(d.data.Metadata),
		CreatedAt:          d.now,
		UpdatedAt:          d.now,
	}
	if d.data.TrialEnd != nil {
		sub.Status = subscriptiondomain.StatusTrialing
		trialEnd := d.data.TrialEnd.UTC()
		sub.TrialEnd = &trialEnd
		trialStart := start
		if d.data.TrialStart != nil {
			trialStart = d.data.TrialStart.UTC()
		}
		sub.TrialStart = &trialStart
	}
	if d.data.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *d.data.CancelAtPeriodEnd
	}
	if d.data.SubscriptionID != "" {
		ext := d.data.SubscriptionID
		sub.ExternalID = &ext
	}

	// The savepoint keeps the outer transaction usable on postgres when a
	// concurrent delivery inserted the same external id first.
	insertErr := tx.Transaction(func(sp *gorm.DB) error {
		return d.subscriptionRepo.Insert(ctx, sp, sub)
	})
	if insertErr == nil {
		d.result.SubscriptionID = &sub.ID
		return nil
	}
	if sub.ExternalID == nil {
		return insertErr
	}
	existing, err := d.findSubscription(ctx, tx)
	if err != nil {
		return errors.Join(insertErr, err)
	}
	if existing == nil {
		// The external id is held by a subscription of another customer.
		if errors.Is(insertErr, gorm.ErrDuplicatedKey) {
			return subscriptiondomain.ErrDuplicateExternalID
		}
		return insertErr
	}
	d.result.SubscriptionID = &existing.ID
	return nil
}

func (d *dispatch) subscriptionUpdated(ctx context.Context, tx *gorm.DB) error {
	sub, err := d.requireSubscription(ctx, tx)
	if err != nil {
		return err
	}

	if planID := d.integration.MapPlan(d.data.PlanID); planID != nil {
		sub.PlanID = planID
	}
	if d.data.Status != "" && sub.Status != subscriptiondomain.StatusCancelled {
		sub.Status = subscriptiondomain.Status(d.data.Status)
	}
	if d.data.PeriodStart != nil {
		sub.CurrentPeriodStart = d.data.PeriodStart.UTC()
	}
	if d.data.PeriodEnd != nil {
		sub.CurrentPeriodEnd = d.data.PeriodEnd.UTC()
	}
	if d.data.TrialStart != nil {
		ts := d.data.TrialStart.UTC()
		sub.TrialStart = &ts
	}
	if d.data.TrialEnd != nil {
		te := d.data.TrialEnd.UTC()
		sub.TrialEnd = &te
	}
	if d.data.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *d.data.CancelAtPeriodEnd
	}
	if d.data.Metadata != nil {
		sub.Metadata = datatypes.JSONMap(d.data.Metadata)
	}
	return d.save(ctx, tx, sub)
}

func (d *dispatch) subscriptionCancelled(ctx context.Context, tx *gorm.DB) error {
	sub, err := d.requireSubscription(ctx, tx)
	if err != nil {
		return err
	}

	atPeriodEnd := sub.CancelAtPeriodEnd
	if d.data.CancelAtPeriodEnd != nil {
		atPeriodEnd = *d.data.CancelAtPeriodEnd
	}
	sub.Status = subscriptiondomain.StatusCancelled
	sub.CancelAtPeriodEnd = atPeriodEnd
	switch {
	case atPeriodEnd:
		sub.CancelledAt = nil
	case sub.CancelledAt == nil:
		now := d.now
		sub.CancelledAt = &now
	}
	return d.save(ctx, tx, sub)
}

func (d *dispatch) trialEnded(ctx context.Context, tx *gorm.DB) error {
	sub, err := d.requireSubscription(ctx, tx)
	if err != nil {
		return err
	}
	if sub.Status == subscriptiondomain.StatusCancelled {
		d.result.SubscriptionID = &sub.ID
		return nil
	}
	sub.Status = subscriptiondomain.StatusActive
	sub.TrialEnd = nil
	return d.save(ctx, tx, sub)
}

func (d *dispatch) findSubscription(ctx context.Context, tx *gorm.DB) (*subscriptiondomain.Subscription, error) {
	return d.subscriptionRepo.FindByExternalID(ctx, tx, d.customer.OrgID, d.customer.ID, d.data.SubscriptionID)
}

func (d *dispatch) requireSubscription(ctx context.Context, tx *gorm.DB) (*subscriptiondomain.Subscription, error) {
	if d.data.SubscriptionID == "" {
		return nil, paymentdomain.ErrMissingSubscriptionID
	}
	sub, err := d.findSubscription(ctx, tx)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (d *dispatch) save(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription) error {
	sub.UpdatedAt = d.now
	if err := d.subscriptionRepo.Update(ctx, tx, sub); err != nil {
		return err
	}
	d.result.SubscriptionID = &sub.ID
	return nil
}
