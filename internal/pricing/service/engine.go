package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"github.com/railzwaylabs/billingcore/internal/observability"
	"github.com/railzwaylabs/billingcore/internal/pricing/domain"
	productdomain "github.com/railzwaylabs/billingcore/internal/product/domain"
	promotiondomain "github.com/railzwaylabs/billingcore/internal/promotion/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/railzwaylabs/billingcore/internal/pricing")

// PPPResolver and PromotionResolver are the discount sources the engine
// composes. Both the quote endpoint and order creation go through the same
// Engine, so they cannot drift apart.
type PPPResolver interface {
	CalculatePPPDiscount(ctx context.Context, countryCode string, orgID snowflake.ID) (int, error)
}

type PromotionResolver interface {
	Resolve(ctx context.Context, req promotiondomain.ResolveRequest) (*promotiondomain.Resolution, error)
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	ProductRepo productdomain.Repository
	PPP         PPPResolver
	Promotions  PromotionResolver
	Metrics     *observability.Metrics `optional:"true"`
}

type Engine struct {
	db          *gorm.DB
	log         *zap.Logger
	productRepo productdomain.Repository
	ppp         PPPResolver
	promotions  PromotionResolver
	metrics     *observability.Metrics
}

func New(p Params) domain.Engine {
	return &Engine{
		db:          p.DB,
		log:         p.Log.Named("pricing.engine"),
		productRepo: p.ProductRepo,
		ppp:         p.PPP,
		promotions:  p.Promotions,
		metrics:     p.Metrics,
	}
}

func (e *Engine) CalculatePrice(ctx context.Context, req domain.PriceRequest) (quote *domain.PriceQuote, err error) {
	ctx, span := tracer.Start(ctx, "pricing.CalculatePrice")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		e.observe(err)
	}()
	span.SetAttributes(attribute.String("plan_id", req.PlanID.String()))

	plan, err := e.findPlan(ctx, req)
	if err != nil {
		return nil, err
	}

	country := strings.ToUpper(strings.TrimSpace(req.CountryCode))
	quote = &domain.PriceQuote{
		PlanID:      plan.ID,
		ProductID:   plan.ProductID,
		Currency:    plan.Currency,
		CountryCode: country,
		BasePrice:   plan.Price,
	}

	if country != "" && req.OrgID != 0 {
		pct, err := e.ppp.CalculatePPPDiscount(ctx, country, req.OrgID)
		if err != nil {
			return nil, err
		}
		quote.PPPPercentage = pct
		quote.PPPDiscount = promotiondomain.PercentOf(plan.Price, int64(pct))
	}

	code := strings.TrimSpace(req.PromotionCode)
	if code != "" && req.OrgID != 0 {
		res, err := e.promotions.Resolve(ctx, promotiondomain.ResolveRequest{
			OrgID:       req.OrgID,
			Code:        code,
			CustomerID:  req.CustomerID,
			PlanID:      plan.ID,
			ProductID:   plan.ProductID,
			CountryCode: country,
			BasePrice:   plan.Price,
		})
		switch {
		case err == nil:
			quote.PromotionDiscount = res.Discount
			quote.PromotionCode = res.Promotion.Code
			quote.Promotion = res.Promotion
		case errors.Is(err, apperror.ErrNotFound):
			e.log.Warn("promotion not applied",
				zap.String("org_id", req.OrgID.String()),
				zap.String("code", code),
				zap.String("reason", apperror.CodeOf(err)))
		default:
			return nil, err
		}
	}

	quote.FinalPrice = domain.FinalPrice(quote.BasePrice, quote.PPPDiscount, quote.PromotionDiscount)
	span.SetAttributes(attribute.Int64("final_price", quote.FinalPrice))
	return quote, nil
}

func (e *Engine) findPlan(ctx context.Context, req domain.PriceRequest) (*productdomain.Plan, error) {
	var (
		plan *productdomain.Plan
		err  error
	)
	if req.OrgID != 0 {
		plan, err = e.productRepo.FindPlanForOrg(ctx, e.db, req.OrgID, req.PlanID)
	} else {
		plan, err = e.productRepo.FindPlan(ctx, e.db, req.PlanID)
	}
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, productdomain.ErrPlanNotFound
	}
	return plan, nil
}

func (e *Engine) observe(err error) {
	if e.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		if kind := apperror.KindOf(err); kind != "" {
			outcome = string(kind)
		}
	}
	e.metrics.PriceCalculations.WithLabelValues(outcome).Inc()
}
