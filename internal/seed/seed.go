package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	apikeydomain "github.com/railzwaylabs/billingcore/internal/apikey/domain"
	"github.com/railzwaylabs/billingcore/internal/clock"
	"github.com/railzwaylabs/billingcore/internal/config"
	organizationdomain "github.com/railzwaylabs/billingcore/internal/organization/domain"
	pppdomain "github.com/railzwaylabs/billingcore/internal/ppp/domain"
	productdomain "github.com/railzwaylabs/billingcore/internal/product/domain"
	promotiondomain "github.com/railzwaylabs/billingcore/internal/promotion/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultOrgName  = "Main"
	adminKeyName    = "bootstrap admin"
	sampleProduct   = "Starter"
	samplePromoCode = "WELCOME10"
)

var ErrInvalidAdminKey = errors.New("bootstrap admin key must start with " + apikeydomain.KeyPrefix)

// Options controls what Run creates. Empty fields fall back to the
// bootstrap config.
type Options struct {
	OrgName  string
	AdminKey string
	Sample   bool
}

type Result struct {
	Org *organizationdomain.Organization
	// AdminKey is set only when this run generated the key.
	AdminKey string
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      config.Config
	OrgRepo     organizationdomain.Repository
	APIKeyRepo  apikeydomain.Repository
	ProductRepo productdomain.Repository
	PPPRepo     pppdomain.Repository
	PromoRepo   promotiondomain.Repository
}

type Seeder struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	cfg         config.Config
	orgRepo     organizationdomain.Repository
	apiKeyRepo  apikeydomain.Repository
	productRepo productdomain.Repository
	pppRepo     pppdomain.Repository
	promoRepo   promotiondomain.Repository
}

func New(p Params) *Seeder {
	return &Seeder{
		db:          p.DB,
		log:         p.Log.Named("seed"),
		genID:       p.GenID,
		clock:       p.Clock,
		cfg:         p.Config,
		orgRepo:     p.OrgRepo,
		apiKeyRepo:  p.APIKeyRepo,
		productRepo: p.ProductRepo,
		pppRepo:     p.PPPRepo,
		promoRepo:   p.PromoRepo,
	}
}

// Run is idempotent: the organization is matched by slug, the admin key
// by hash, and sample data is only added to an organization without
// products.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	name := strings.TrimSpace(opts.OrgName)
	if name == "" {
		name = strings.TrimSpace(s.cfg.Bootstrap.OrgName)
	}
	if name == "" {
		name = defaultOrgName
	}
	adminKey := strings.TrimSpace(opts.AdminKey)
	if adminKey == "" {
		adminKey = strings.TrimSpace(s.cfg.Bootstrap.AdminKey)
	}
	if adminKey != "" && !strings.HasPrefix(adminKey, apikeydomain.KeyPrefix) {
		return nil, ErrInvalidAdminKey
	}

	result := &Result{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := s.ensureOrg(ctx, tx, name)
		if err != nil {
			return err
		}
		result.Org = org

		generated, err := s.ensureAdminKey(ctx, tx, org.ID, adminKey)
		if err != nil {
			return err
		}
		result.AdminKey = generated

		if opts.Sample {
			return s.ensureSampleCatalog(ctx, tx, org.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("seed completed",
		zap.String("org_id", result.Org.ID.String()),
		zap.String("org_slug", result.Org.Slug),
		zap.Bool("admin_key_generated", result.AdminKey != ""),
		zap.Bool("sample", opts.Sample))
	return result, nil
}

func (s *Seeder) ensureOrg(ctx context.Context, tx *gorm.DB, name string) (*organizationdomain.Organization, error) {
	orgSlug := slug.Make(name)
	existing, err := s.orgRepo.FindBySlug(ctx, tx, orgSlug)
	if err != nil || existing != nil {
		return existing, err
	}

	now := s.clock.Now(ctx)
	org := &organizationdomain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      orgSlug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orgRepo.Insert(ctx, tx, org); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *Seeder) ensureAdminKey(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, raw string) (string, error) {
	now := s.clock.Now(ctx)
	if raw != "" {
		found, err := s.apiKeyRepo.FindActiveByHash(ctx, tx, apikeydomain.HashAPIKey(raw), now)
		if err != nil || found != nil {
			return "", err
		}
		return "", s.insertAdminKey(ctx, tx, orgID, raw, now)
	}

	var admins int64
	if err := tx.WithContext(ctx).Model(&apikeydomain.APIKey{}).
		Where("org_id = ? AND role = ? AND is_active = ?", orgID, apikeydomain.RoleAdmin, true).
		Count(&admins).Error; err != nil {
		return "", err
	}
	if admins > 0 {
		return "", nil
	}

	raw = apikeydomain.GenerateKey()
	if err := s.insertAdminKey(ctx, tx, orgID, raw, now); err != nil {
		return "", err
	}
	return raw, nil
}

func (s *Seeder) insertAdminKey(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, raw string, now time.Time) error {
	return s.apiKeyRepo.Insert(ctx, tx, &apikeydomain.APIKey{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      adminKeyName,
		KeyHash:   apikeydomain.HashAPIKey(raw),
		Hint:      apikeydomain.KeyHint(raw),
		Role:      apikeydomain.RoleAdmin,
		IsActive:  true,
		CreatedAt: now,
	})
}

// ensureSampleCatalog adds one product with a monthly plan, an emerging
// markets PPP rule and a welcome promotion.
func (s *Seeder) ensureSampleCatalog(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	var products int64
	if err := tx.WithContext(ctx).Model(&productdomain.Product{}).Where("org_id = ?", orgID).Count(&products).Error; err != nil {
		return err
	}
	if products > 0 {
		return nil
	}

	now := s.clock.Now(ctx)
	product := &productdomain.Product{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Name:        sampleProduct,
		Description: "Sample product created by seed",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.productRepo.InsertProduct(ctx, tx, product); err != nil {
		return err
	}

	for _, plan := range []*productdomain.PricingPlan{
		{Name: "Starter Monthly", Price: 1000, Interval: productdomain.IntervalMonth},
		{Name: "Starter Yearly", Price: 10000, Interval: productdomain.IntervalYear, TrialDays: 14},
	} {
		plan.ID = s.genID.Generate()
		plan.ProductID = product.ID
		plan.Currency = "USD"
		plan.IntervalCount = 1
		plan.IsActive = true
		plan.CreatedAt = now
		plan.UpdatedAt = now
		if err := s.productRepo.InsertPlan(ctx, tx, plan); err != nil {
			return err
		}
	}

	rule := &pppdomain.Rule{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Name:        "Emerging markets",
		Countries:   []string{"IN", "ID", "BR", "NG", "PH"},
		MinDiscount: 10,
		MaxDiscount: 50,
		Priority:    10,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.pppRepo.Insert(ctx, tx, rule); err != nil {
		return err
	}

	// promotion codes are unique across organizations
	var taken int64
	if err := tx.WithContext(ctx).Model(&promotiondomain.Promotion{}).Where("code = ?", samplePromoCode).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return nil
	}

	maxUses := int64(1000)
	return s.promoRepo.Insert(ctx, tx, &promotiondomain.Promotion{
		ID:                 s.genID.Generate(),
		OrgID:              orgID,
		Code:               samplePromoCode,
		Name:               "Welcome discount",
		Type:               promotiondomain.TypePercentage,
		Value:              10,
		MaxUses:            &maxUses,
		MaxUsesPerCustomer: 1,
		ValidFrom:          now,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
}
