package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/railzwaylabs/billingcore/internal/observability"
	"github.com/railzwaylabs/billingcore/internal/pricing/domain"
	"github.com/railzwaylabs/billingcore/internal/pricing/service"
	productdomain "github.com/railzwaylabs/billingcore/internal/product/domain"
	productrepo "github.com/railzwaylabs/billingcore/internal/product/repository"
	promotiondomain "github.com/railzwaylabs/billingcore/internal/promotion/domain"
	"github.com/railzwaylabs/billingcore/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPPP struct {
	pct   map[string]int
	calls int
}

func (s *stubPPP) CalculatePPPDiscount(_ context.Context, countryCode string, _ snowflake.ID) (int, error) {
	s.calls++
	return s.pct[countryCode], nil
}

type stubPromotions struct {
	promo *promotiondomain.Promotion
	err   error
	got   *promotiondomain.ResolveRequest
}

func (s *stubPromotions) Resolve(_ context.Context, req promotiondomain.ResolveRequest) (*promotiondomain.Resolution, error) {
	s.got = &req
	if s.err != nil {
		return nil, s.err
	}
	return &promotiondomain.Resolution{Promotion: s.promo, Discount: s.promo.Discount(req.BasePrice)}, nil
}

type fixture struct {
	engine  domain.Engine
	ppp     *stubPPP
	promos  *stubPromotions
	metrics *observability.Metrics
	orgID   snowflake.ID
	plan    productdomain.PricingPlan
}

func setup(t *testing.T, price int64) fixture {
	t.Helper()
	db := dbtest.Open(t, &productdomain.Product{}, &productdomain.PricingPlan{})
	node := dbtest.Node(t)
	orgID := node.Generate()

	product := productdomain.Product{ID: node.Generate(), OrgID: orgID, Name: "Pro", IsActive: true}
	require.NoError(t, db.Create(&product).Error)
	plan := productdomain.PricingPlan{ID: node.Generate(), ProductID: product.ID, Name: "Monthly", Price: price, Currency: "USD", Interval: productdomain.IntervalMonth, IntervalCount: 1, IsActive: true}
	require.NoError(t, db.Create(&plan).Error)

	ppp := &stubPPP{pct: map[string]int{"IN": 50, "BR": 30}}
	promos := &stubPromotions{}
	metrics := observability.NewMetrics(observability.NewRegistry())
	engine := service.New(service.Params{
		DB:          db,
		Log:         zap.NewNop(),
		ProductRepo: productrepo.Provide(),
		PPP:         ppp,
		Promotions:  promos,
		Metrics:     metrics,
	})
	return fixture{engine: engine, ppp: ppp, promos: promos, metrics: metrics, orgID: orgID, plan: plan}
}

func TestCalculatePriceBaseOnly(t *testing.T) {
	f := setup(t, 1000)

	quote, err := f.engine.CalculatePrice(context.Background(), domain.PriceRequest{OrgID: f.orgID, PlanID: f.plan.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1000, quote.BasePrice)
	assert.EqualValues(t, 1000, quote.FinalPrice)
	assert.Equal(t, "USD", quote.Currency)
	assert.Zero(t, f.ppp.calls, "no country means no PPP lookup")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PriceCalculations.WithLabelValues("success")))
}

func TestCalculatePriceStacksDiscountsOnBase(t *testing.T) {
	f := setup(t, 1000)
	f.promos.promo = &promotiondomain.Promotion{Code: "SAVE20", Type: promotiondomain.TypePercentage, Value: 20}

	quote, err := f.engine.CalculatePrice(context.Background(), domain.PriceRequest{
		OrgID: f.orgID, PlanID: f.plan.ID, CountryCode: " in ", PromotionCode: "save20", CustomerID: 9,
	})
	require.NoError(t, err)
	assert.Equal(t, "IN", quote.CountryCode)
	assert.Equal(t, 50, quote.PPPPercentage)
	assert.EqualValues(t, 500, quote.PPPDiscount)
	assert.EqualValues(t, 200, quote.PromotionDiscount, "promotion applies to the base price, not the PPP price")
	assert.EqualValues(t, 300, quote.FinalPrice)
	assert.EqualValues(t, 700, quote.DiscountAmount())
	assert.Equal(t, "SAVE20", quote.PromotionCode)

	require.NotNil(t, f.promos.got)
	assert.Equal(t, f.plan.ProductID, f.promos.got.ProductID)
	assert.EqualValues(t, 9, f.promos.got.CustomerID)
	assert.Equal(t, "IN", f.promos.got.CountryCode)
}

func TestCalculatePriceFloorsAtZero(t *testing.T) {
	f := setup(t, 1000)
	f.promos.promo = &promotiondomain.Promotion{Code: "BIG", Type: promotiondomain.TypeFixed, Value: 900}

	quote, err := f.engine.CalculatePrice(context.Background(), domain.PriceRequest{
		OrgID: f.orgID, PlanID: f.plan.ID, CountryCode: "IN", PromotionCode: "BIG",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 500, quote.PPPDiscount)
	assert.EqualValues(t, 900, quote.PromotionDiscount)
	assert.Zero(t, quote.FinalPrice)
	assert.EqualValues(t, 1000, quote.DiscountAmount())
}

func TestUnusablePromotionIsIgnored(t *testing.T) {
	f := setup(t, 1000)
	f.promos.err = promotiondomain.ErrPromotionExpired

	quote, err := f.engine.CalculatePrice(context.Background(), domain.PriceRequest{
		OrgID: f.orgID, PlanID: f.plan.ID, CountryCode: "BR", PromotionCode: "OLD",
	})
	require.NoError(t, err)
	assert.Zero(t, quote.PromotionDiscount)
	assert.Empty(t, quote.PromotionCode)
	assert.EqualValues(t, 700, quote.FinalPrice)
}

func TestPromotionInfrastructureErrorPropagates(t *testing.T) {
	f := setup(t, 1000)
	f.promos.err = errors.New("connection reset")

	_, err := f.engine.CalculatePrice(context.Background(), domain.PriceRequest{OrgID: f.orgID, PlanID: f.plan.ID, PromotionCode: "X"})
	assert.EqualError(t, err, "connection reset")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PriceCalculations.WithLabelValues("error")))
}

func TestZeroOrgDisablesDiscounts(t *testing.T) {
	f := setup(t, 1000)
	f.promos.promo = &promotiondomain.Promotion{Code: "SAVE20", Type: promotiondomain.TypePercentage, Value: 20}

	quote, err := f.engine.CalculatePrice(context.Background(), domain.PriceRequest{PlanID: f.plan.ID, CountryCode: "IN", PromotionCode: "SAVE20"})
	require.NoError(t, err)
	assert.EqualValues(t, 1000, quote.FinalPrice)
	assert.Zero(t, f.ppp.calls)
	assert.Nil(t, f.promos.got)
}

func TestPlanScopedToOrganization(t *testing.T) {
	f := setup(t, 1000)

	_, err := f.engine.CalculatePrice(context.Background(), domain.PriceRequest{OrgID: f.orgID + 1, PlanID: f.plan.ID})
	assert.ErrorIs(t, err, productdomain.ErrPlanNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PriceCalculations.WithLabelValues("not_found")))
}
