package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"github.com/railzwaylabs/billingcore/internal/clock"
	customerdomain "github.com/railzwaylabs/billingcore/internal/customer/domain"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	productdomain "github.com/railzwaylabs/billingcore/internal/product/domain"
	promotiondomain "github.com/railzwaylabs/billingcore/internal/promotion/domain"
	subscriptiondomain "github.com/railzwaylabs/billingcore/internal/subscription/domain"
	"github.com/railzwaylabs/billingcore/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         subscriptiondomain.Repository
	CustomerRepo customerdomain.Repository
	ProductRepo  productdomain.Repository
	Promotions   promotiondomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         subscriptiondomain.Repository
	customerRepo customerdomain.Repository
	productRepo  productdomain.Repository
	promotions   promotiondomain.Service
}

func New(p Params) subscriptiondomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("subscription.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		productRepo:  p.ProductRepo,
		promotions:   p.Promotions,
	}
}

// Create starts a subscription on a plan. A valid free_trial promotion
// replaces the plan's own trial length.
func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (*subscriptiondomain.Subscription, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}

	customerID, err := s.parseID(req.CustomerID, subscriptiondomain.ErrInvalidCustomer)
	if err != nil {
		return nil, err
	}
	planID, err := s.parseID(req.PlanID, subscriptiondomain.ErrInvalidPlan)
	if err != nil {
		return nil, err
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, orgID, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrCustomerNotFound
	}

	plan, err := s.productRepo.FindPlanForOrg(ctx, s.db, orgID, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, productdomain.ErrPlanNotFound
	}

	trialDays := plan.TrialDays
	var trialPromotion *promotiondomain.Promotion
	if code := strings.TrimSpace(req.PromotionCode); code != "" {
		res, err := s.promotions.Resolve(ctx, promotiondomain.ResolveRequest{
			OrgID:       orgID,
			Code:        code,
			CustomerID:  customer.ID,
			PlanID:      plan.ID,
			ProductID:   plan.ProductID,
			CountryCode: customer.Country,
			BasePrice:   plan.Price,
		})
		switch {
		case err == nil:
			if days := res.Promotion.FreeTrialDays(); days > 0 {
				trialDays = days
				trialPromotion = res.Promotion
			}
		case errors.Is(err, apperror.ErrNotFound):
			s.log.Warn("trial promotion not applied",
				zap.String("org_id", orgID.String()),
				zap.String("code", code),
				zap.String("reason", apperror.CodeOf(err)))
		default:
			return nil, err
		}
	}

	now := s.clock.Now(ctx)
	planRef := plan.ID
	sub := &subscriptiondomain.Subscription{
		ID:                 s.genID.Generate(),
		OrgID:              orgID,
		CustomerID:         customer.ID,
		PlanID:             &planRef,
		Status:             subscriptiondomain.StatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   plan.PeriodEnd(now),
		Metadata:           datatypes.JSONMap(req.Metadata),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if trialDays > 0 {
		trialEnd := now.Add(time.Duration(trialDays) * 24 * time.Hour)
		sub.Status = subscriptiondomain.StatusTrialing
		sub.TrialStart = &now
		sub.TrialEnd = &trialEnd
	}
	if ext := strings.TrimSpace(req.ExternalID); ext != "" {
		sub.ExternalID = &ext
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, sub); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return subscriptiondomain.ErrDuplicateExternalID
			}
			return err
		}
		if trialPromotion != nil {
			if _, err := s.promotions.RecordUsage(ctx, tx, trialPromotion, customer.ID, sub.ID, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription created",
		zap.String("org_id", orgID.String()),
		zap.String("subscription_id", sub.ID.String()),
		zap.String("status", string(sub.Status)),
		zap.Int("trial_days", trialDays))
	return sub, nil
}

// Cancel ends a subscription now, or flags it to lapse at the end of the
// current period while it keeps its status.
func (s *Service) Cancel(ctx context.Context, id string, req subscriptiondomain.CancelSubscriptionRequest) (*subscriptiondomain.Subscription, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	subscriptionID, err := s.parseID(id, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}

	sub, err := s.repo.FindByID(ctx, s.db, orgID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	if sub.Status == subscriptiondomain.StatusCancelled {
		return nil, subscriptiondomain.ErrAlreadyCancelled
	}

	now := s.clock.Now(ctx)
	sub.CancelAtPeriodEnd = req.AtPeriodEnd
	if req.AtPeriodEnd {
		sub.CancelledAt = nil
	} else {
		sub.Status = subscriptiondomain.StatusCancelled
		sub.CancelledAt = &now
	}
	sub.UpdatedAt = now

	if err := s.repo.Update(ctx, s.db, sub); err != nil {
		return nil, err
	}

	s.log.Info("subscription cancelled",
		zap.String("org_id", orgID.String()),
		zap.String("subscription_id", sub.ID.String()),
		zap.Bool("at_period_end", req.AtPeriodEnd))
	return sub, nil
}

func (s *Service) Get(ctx context.Context, id string) (*subscriptiondomain.Subscription, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	subscriptionID, err := s.parseID(id, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}

	sub, err := s.repo.FindByID(ctx, s.db, orgID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *Service) List(ctx context.Context, req subscriptiondomain.ListSubscriptionRequest, page pagination.Pagination) ([]*subscriptiondomain.Subscription, *pagination.PageInfo, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, nil, err
	}

	var filter subscriptiondomain.ListFilter
	if status := strings.TrimSpace(req.Status); status != "" {
		filter.Status = subscriptiondomain.Status(strings.ToLower(status))
		if !filter.Status.Valid() {
			return nil, nil, subscriptiondomain.ErrInvalidStatus
		}
	}
	if req.CustomerID != "" {
		customerID, err := s.parseID(req.CustomerID, subscriptiondomain.ErrInvalidCustomer)
		if err != nil {
			return nil, nil, err
		}
		filter.CustomerID = customerID
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter, page)
	if err != nil {
		return nil, nil, err
	}
	items, info := pagination.Page(page, items, func(item *subscriptiondomain.Subscription) snowflake.ID { return item.ID })
	return items, info, nil
}

func (s *Service) parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
