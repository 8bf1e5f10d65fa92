package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/clock"
	"github.com/railzwaylabs/billingcore/internal/integration/domain"
	"github.com/railzwaylabs/billingcore/internal/integration/repository"
	"github.com/railzwaylabs/billingcore/internal/integration/service"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	productdomain "github.com/railzwaylabs/billingcore/internal/product/domain"
	productrepo "github.com/railzwaylabs/billingcore/internal/product/repository"
	"github.com/railzwaylabs/billingcore/internal/security/vault"
	"github.com/railzwaylabs/billingcore/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	svc   domain.Service
	orgID snowflake.ID
	plan  productdomain.PricingPlan
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t, &domain.Integration{}, &productdomain.Product{}, &productdomain.PricingPlan{})
	node := dbtest.Node(t)

	v, err := vault.NewFactory(vault.Config{AESKey: "integration-test-key"})
	require.NoError(t, err)

	orgID := node.Generate()
	product := productdomain.Product{ID: node.Generate(), OrgID: orgID, Name: "Pro", IsActive: true}
	require.NoError(t, db.Create(&product).Error)
	plan := productdomain.PricingPlan{ID: node.Generate(), ProductID: product.ID, Name: "Monthly", Price: 1000, Currency: "USD", Interval: productdomain.IntervalMonth, IntervalCount: 1, IsActive: true}
	require.NoError(t, db.Create(&plan).Error)

	svc := service.New(service.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.Fixed(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Vault:       v,
		Repo:        repository.Provide(),
		ProductRepo: productrepo.Provide(),
	})
	return fixture{db: db, node: node, svc: svc, orgID: orgID, plan: plan}
}

func TestCreateGeneratesAndSealsSecret(t *testing.T) {
	f := setup(t)
	ctx := orgcontext.WithOrgID(context.Background(), f.orgID)

	created, err := f.svc.Create(ctx, domain.CreateIntegrationRequest{Provider: "Stripe"})
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStripe, created.Provider)
	assert.True(t, created.IsActive)
	assert.True(t, strings.HasPrefix(created.WebhookSecret, "whsec_"))
	assert.NotContains(t, created.SealedWebhookSecret, created.WebhookSecret)

	item, secret, err := f.svc.ResolveWebhookSecret(context.Background(), f.orgID, "")
	require.NoError(t, err)
	assert.Equal(t, created.ID, item.ID)
	assert.Equal(t, created.WebhookSecret, string(secret))
}

func TestCreateRejectsSecondIntegrationForProvider(t *testing.T) {
	f := setup(t)
	ctx := orgcontext.WithOrgID(context.Background(), f.orgID)

	_, err := f.svc.Create(ctx, domain.CreateIntegrationRequest{Provider: "paddle", WebhookSecret: "pdl_secret"})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, domain.CreateIntegrationRequest{Provider: "paddle"})
	require.Error(t, err)
}

func TestCreateValidatesProviderAndMapping(t *testing.T) {
	f := setup(t)
	ctx := orgcontext.WithOrgID(context.Background(), f.orgID)

	_, err := f.svc.Create(ctx, domain.CreateIntegrationRequest{Provider: "paypal"})
	assert.ErrorIs(t, err, domain.ErrInvalidProvider)

	_, err = f.svc.Create(ctx, domain.CreateIntegrationRequest{Provider: "stripe", PlanMapping: map[string]string{"price_1": "nope"}})
	assert.ErrorIs(t, err, domain.ErrInvalidPlanMapping)

	_, err = f.svc.Create(ctx, domain.CreateIntegrationRequest{Provider: "stripe", PlanMapping: map[string]string{"price_1": f.node.Generate().String()}})
	assert.ErrorIs(t, err, productdomain.ErrPlanNotFound)
}

func TestResolveWebhookSecretRequiresActiveIntegration(t *testing.T) {
	f := setup(t)
	ctx := orgcontext.WithOrgID(context.Background(), f.orgID)

	_, _, err := f.svc.ResolveWebhookSecret(ctx, f.orgID, "stripe")
	assert.ErrorIs(t, err, domain.ErrIntegrationNotFound)

	inactive := false
	_, err = f.svc.Create(ctx, domain.CreateIntegrationRequest{Provider: "stripe", IsActive: &inactive})
	require.NoError(t, err)

	_, _, err = f.svc.ResolveWebhookSecret(ctx, f.orgID, "stripe")
	assert.ErrorIs(t, err, domain.ErrIntegrationNotFound)
}

func TestUpdateRotatesSecret(t *testing.T) {
	f := setup(t)
	ctx := orgcontext.WithOrgID(context.Background(), f.orgID)

	created, err := f.svc.Create(ctx, domain.CreateIntegrationRequest{Provider: "hmac", WebhookSecret: "first"})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, created.ID, domain.UpdateIntegrationRequest{RotateSecret: true})
	require.NoError(t, err)
	require.NotEmpty(t, updated.WebhookSecret)
	assert.NotEqual(t, "first", updated.WebhookSecret)

	_, secret, err := f.svc.ResolveWebhookSecret(ctx, f.orgID, "hmac")
	require.NoError(t, err)
	assert.Equal(t, updated.WebhookSecret, string(secret))

	unchanged, err := f.svc.Update(ctx, created.ID, domain.UpdateIntegrationRequest{})
	require.NoError(t, err)
	assert.Empty(t, unchanged.WebhookSecret)
}

func TestCredentialsRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := orgcontext.WithOrgID(context.Background(), f.orgID)

	_, err := f.svc.Create(ctx, domain.CreateIntegrationRequest{
		Provider:    "stripe",
		Credentials: map[string]any{"api_key": "sk_test_123"},
	})
	require.NoError(t, err)

	creds, err := f.svc.Credentials(ctx, f.orgID, "stripe")
	require.NoError(t, err)
	assert.Equal(t, "sk_test_123", creds["api_key"])
}

func TestMapExternalPlanToInternal(t *testing.T) {
	f := setup(t)
	ctx := orgcontext.WithOrgID(context.Background(), f.orgID)

	planID, err := f.svc.MapExternalPlanToInternal(ctx, f.orgID, "price_pro")
	require.NoError(t, err)
	assert.Nil(t, planID, "no integration means no mapping")

	created, err := f.svc.Create(ctx, domain.CreateIntegrationRequest{
		Provider:    "stripe",
		PlanMapping: map[string]string{"price_pro": f.plan.ID.String()},
	})
	require.NoError(t, err)

	planID, err = f.svc.MapExternalPlanToInternal(ctx, f.orgID, "price_pro")
	require.NoError(t, err)
	require.NotNil(t, planID)
	assert.Equal(t, f.plan.ID, *planID)

	planID, err = f.svc.MapExternalPlanToInternal(ctx, f.orgID, "price_unknown")
	require.NoError(t, err)
	assert.Nil(t, planID)

	inactive := false
	_, err = f.svc.Update(ctx, created.ID, domain.UpdateIntegrationRequest{IsActive: &inactive})
	require.NoError(t, err)

	planID, err = f.svc.MapExternalPlanToInternal(ctx, f.orgID, "price_pro")
	require.NoError(t, err)
	assert.Nil(t, planID)
}
