package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/railzwaylabs/billingcore/internal/clock"
	customerdomain "github.com/railzwaylabs/billingcore/internal/customer/domain"
	"github.com/railzwaylabs/billingcore/internal/entitlement/domain"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	productdomain "github.com/railzwaylabs/billingcore/internal/product/domain"
	subscriptiondomain "github.com/railzwaylabs/billingcore/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	Repo             domain.Repository
	CustomerRepo     customerdomain.Repository
	ProductRepo      productdomain.Repository
	SubscriptionRepo subscriptiondomain.Repository
}

type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	repo             domain.Repository
	customerRepo     customerdomain.Repository
	productRepo      productdomain.Repository
	subscriptionRepo subscriptiondomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("entitlement.service"),
		genID:            p.GenID,
		clock:            p.Clock,
		repo:             p.Repo,
		customerRepo:     p.CustomerRepo,
		productRepo:      p.ProductRepo,
		subscriptionRepo: p.SubscriptionRepo,
	}
}

func (s *Service) CreateFeature(ctx context.Context, req domain.CreateFeatureRequest) (*domain.Feature, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	featureSlug := strings.TrimSpace(req.Slug)
	if featureSlug == "" {
		featureSlug = name
	}
	featureSlug = slug.Make(featureSlug)
	if !slug.IsSlug(featureSlug) {
		return nil, domain.ErrInvalidSlug
	}

	now := s.clock.Now(ctx)
	feature := &domain.Feature{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Slug:        featureSlug,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertFeature(ctx, s.db, feature); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrDuplicateSlug
		}
		return nil, err
	}
	return feature, nil
}

func (s *Service) ListFeatures(ctx context.Context) ([]domain.Feature, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListFeatures(ctx, s.db, orgID)
}

func (s *Service) AttachToPlan(ctx context.Context, planID snowflake.ID, featureSlug string) error {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return err
	}

	plan, err := s.productRepo.FindPlanForOrg(ctx, s.db, orgID, planID)
	if err != nil {
		return err
	}
	if plan == nil {
		return productdomain.ErrPlanNotFound
	}
	feature, err := s.findFeature(ctx, orgID, featureSlug)
	if err != nil {
		return err
	}

	return s.repo.AttachToPlan(ctx, s.db, &domain.PlanFeature{
		PlanID:    plan.ID,
		FeatureID: feature.ID,
		CreatedAt: s.clock.Now(ctx),
	})
}

func (s *Service) Grant(ctx context.Context, req domain.GrantRequest) (*domain.Entitlement, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, orgID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrCustomerNotFound
	}
	feature, err := s.findFeature(ctx, orgID, req.FeatureSlug)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	entitlement := &domain.Entitlement{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		CustomerID: customer.ID,
		FeatureID:  feature.ID,
		Granted:    req.Granted,
		ExpiresAt:  req.ExpiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.UpsertEntitlement(ctx, s.db, entitlement); err != nil {
		return nil, err
	}

	s.log.Info("entitlement set",
		zap.String("org_id", orgID.String()),
		zap.String("customer_id", customer.ID.String()),
		zap.String("feature", feature.Slug),
		zap.Bool("granted", req.Granted))
	return s.repo.FindEntitlement(ctx, s.db, orgID, customer.ID, feature.ID)
}

func (s *Service) CheckFeatureAccess(ctx context.Context, customerID snowflake.ID, featureSlug string) (*domain.Access, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
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
	feature, err := s.findFeature(ctx, orgID, featureSlug)
	if err != nil {
		return nil, err
	}

	access := &domain.Access{Feature: feature.Slug, Source: domain.SourceNone}
	if !feature.IsActive {
		return access, nil
	}

	entitlement, err := s.repo.FindEntitlement(ctx, s.db, orgID, customer.ID, feature.ID)
	if err != nil {
		return nil, err
	}
	if entitlement != nil && entitlement.ActiveAt(s.clock.Now(ctx)) {
		access.Allowed = entitlement.Granted
		access.Source = domain.SourceEntitlement
		return access, nil
	}

	subs, err := s.subscriptionRepo.ListLiveForCustomer(ctx, s.db, orgID, customer.ID)
	if err != nil {
		return nil, err
	}
	planIDs := make([]snowflake.ID, 0, len(subs))
	byPlan := make(map[snowflake.ID]snowflake.ID, len(subs))
	for _, sub := range subs {
		if sub.PlanID == nil {
			continue
		}
		planIDs = append(planIDs, *sub.PlanID)
		if _, ok := byPlan[*sub.PlanID]; !ok {
			byPlan[*sub.PlanID] = sub.ID
		}
	}

	planID, err := s.repo.FindPlanWithFeature(ctx, s.db, feature.ID, planIDs)
	if err != nil {
		return nil, err
	}
	if planID != nil {
		subID := byPlan[*planID]
		access.Allowed = true
		access.Source = domain.SourceSubscription
		access.SubscriptionID = &subID
	}
	return access, nil
}

func (s *Service) findFeature(ctx context.Context, orgID snowflake.ID, featureSlug string) (*domain.Feature, error) {
	featureSlug = slug.Make(strings.TrimSpace(featureSlug))
	if featureSlug == "" {
		return nil, domain.ErrInvalidSlug
	}
	feature, err := s.repo.FindFeatureBySlug(ctx, s.db, orgID, featureSlug)
	if err != nil {
		return nil, err
	}
	if feature == nil {
		return nil, domain.ErrFeatureNotFound
	}
	return feature, nil
}
