package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/clock"
	customerdomain "github.com/railzwaylabs/billingcore/internal/customer/domain"
	"github.com/railzwaylabs/billingcore/internal/observability"
	"github.com/railzwaylabs/billingcore/internal/order/domain"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	pricingdomain "github.com/railzwaylabs/billingcore/internal/pricing/domain"
	promotiondomain "github.com/railzwaylabs/billingcore/internal/promotion/domain"
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
	Repo         domain.Repository
	CustomerRepo customerdomain.Repository
	Pricing      pricingdomain.Engine
	Promotions   promotiondomain.Service
	Metrics      *observability.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	customerRepo customerdomain.Repository
	pricing      pricingdomain.Engine
	promotions   promotiondomain.Service
	metrics      *observability.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("order.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		pricing:      p.Pricing,
		promotions:   p.Promotions,
		metrics:      p.Metrics,
	}
}

// Create prices the order with the shared pricing engine and stores it as
// pending. The customer's own country takes precedence over the request's
// country hint. An unusable promotion code never blocks the order.
func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	if req.CustomerID == 0 {
		return nil, domain.ErrInvalidCustomer
	}
	if req.PlanID == 0 {
		return nil, domain.ErrInvalidPlan
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, orgID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrCustomerNotFound
	}

	country := strings.ToUpper(strings.TrimSpace(customer.Country))
	if country == "" {
		country = strings.ToUpper(strings.TrimSpace(req.CountryCode))
	}

	quote, err := s.pricing.CalculatePrice(ctx, pricingdomain.PriceRequest{
		OrgID:         orgID,
		PlanID:        req.PlanID,
		CountryCode:   country,
		PromotionCode: req.PromotionCode,
		CustomerID:    customer.ID,
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	order := &domain.Order{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		CustomerID:  customer.ID,
		PlanID:      quote.PlanID,
		Status:      domain.StatusPending,
		Currency:    quote.Currency,
		CountryCode: country,
		Metadata:    datatypes.JSONMap(req.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if quote.Promotion != nil {
			claimed, err := s.promotions.RecordUsage(ctx, tx, quote.Promotion, customer.ID, order.ID, quote.PromotionDiscount)
			if err != nil {
				return err
			}
			if !claimed {
				quote.PromotionDiscount = 0
				quote.PromotionCode = ""
				quote.Promotion = nil
				quote.FinalPrice = pricingdomain.FinalPrice(quote.BasePrice, quote.PPPDiscount, 0)
			}
		}
		applyQuote(order, quote)
		return s.repo.Insert(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.String("org_id", orgID.String()),
		zap.String("order_id", order.ID.String()),
		zap.Int64("final_amount", order.FinalAmount),
		zap.String("country_code", country))
	return order, nil
}

func applyQuote(order *domain.Order, quote *pricingdomain.PriceQuote) {
	order.BaseAmount = quote.BasePrice
	order.PPPDiscount = quote.PPPDiscount
	order.PromotionDiscount = quote.PromotionDiscount
	order.DiscountAmount = quote.DiscountAmount()
	order.FinalAmount = quote.FinalPrice
	if quote.Promotion != nil {
		code := quote.Promotion.Code
		promotionID := quote.Promotion.ID
		order.PromotionCode = &code
		order.PromotionID = &promotionID
	}
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status domain.Status) (*domain.Order, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	var updated *domain.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByID(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if !domain.CanTransition(order.Status, status) {
			return domain.ErrInvalidTransition
		}

		var moved bool
		if status == domain.StatusCompleted {
			moved, err = s.Complete(ctx, tx, order, 0)
		} else {
			moved, err = s.repo.TransitionFromPending(ctx, tx, orgID, id, status, s.clock.Now(ctx))
		}
		if err != nil {
			return err
		}
		if !moved {
			return domain.ErrInvalidTransition
		}

		updated, err = s.repo.FindByID(ctx, tx, orgID, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if status != domain.StatusCompleted {
		s.observeTransition(status)
	}
	s.log.Info("order status updated",
		zap.String("org_id", orgID.String()),
		zap.String("order_id", id.String()),
		zap.String("status", string(status)))
	return updated, nil
}

func (s *Service) Complete(ctx context.Context, tx *gorm.DB, order *domain.Order, paidAmount int64) (bool, error) {
	now := s.clock.Now(ctx)
	moved, err := s.repo.TransitionFromPending(ctx, tx, order.OrgID, order.ID, domain.StatusCompleted, now)
	if err != nil || !moved {
		return false, err
	}

	amount := paidAmount
	if amount <= 0 {
		amount = order.FinalAmount
	}
	if err := s.customerRepo.RecordCompletedOrder(ctx, tx, order.OrgID, order.CustomerID, amount, now); err != nil {
		return false, err
	}

	order.Status = domain.StatusCompleted
	order.CompletedAt = &now
	order.UpdatedAt = now
	s.observeTransition(domain.StatusCompleted)
	return true, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListOrderRequest, page pagination.Pagination) ([]*domain.Order, *pagination.PageInfo, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, domain.ErrInvalidStatus
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter, page)
	if err != nil {
		return nil, nil, err
	}
	items, info := pagination.Page(page, items, func(o *domain.Order) snowflake.ID { return o.ID })
	return items, info, nil
}

func (s *Service) observeTransition(status domain.Status) {
	if s.metrics == nil {
		return
	}
	s.metrics.OrderTransitions.WithLabelValues(string(status)).Inc()
}
