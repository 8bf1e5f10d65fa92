package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/railzwaylabs/billingcore/internal/clock"
	"github.com/railzwaylabs/billingcore/internal/integration/domain"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	productdomain "github.com/railzwaylabs/billingcore/internal/product/domain"
	"github.com/railzwaylabs/billingcore/internal/security/vault"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const webhookSecretPrefix = "whsec_"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Vault       vault.Provider
	Repo        domain.Repository
	ProductRepo productdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	vault       vault.Provider
	repo        domain.Repository
	productRepo productdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("integration.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		vault:       p.Vault,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateIntegrationRequest) (*domain.Provisioned, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}

	provider := domain.NormalizeProvider(req.Provider)
	if !domain.ValidProvider(provider) {
		return nil, domain.ErrInvalidProvider
	}

	mapping, err := s.validatePlanMapping(ctx, orgID, req.PlanMapping)
	if err != nil {
		return nil, err
	}

	secret := strings.TrimSpace(req.WebhookSecret)
	if secret == "" {
		secret = generateSecret()
	}

	now := s.clock.Now(ctx)
	item := &domain.Integration{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Provider:  provider,
		IsActive:  true,
		Settings:  datatypes.NewJSONType(domain.Settings{PlanMapping: mapping}),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}
	if err := s.sealSecret(item, secret); err != nil {
		return nil, err
	}
	if err := s.sealCredentials(item, req.Credentials); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, s.db, item); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrDuplicateProvider
		}
		return nil, err
	}

	s.log.Info("integration created",
		zap.String("org_id", orgID.String()),
		zap.String("integration_id", item.ID.String()),
		zap.String("provider", provider))
	return &domain.Provisioned{Integration: item, WebhookSecret: secret}, nil
}

// Update changes activation, credentials, plan mapping or the webhook
// secret. The plaintext secret is only returned when it changed.
func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateIntegrationRequest) (*domain.Provisioned, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrIntegrationNotFound
	}

	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}

	var secret string
	switch {
	case req.RotateSecret:
		secret = generateSecret()
	case req.WebhookSecret != nil:
		secret = strings.TrimSpace(*req.WebhookSecret)
		if secret == "" {
			return nil, domain.ErrInvalidIntegration
		}
	}
	if secret != "" {
		if err := s.sealSecret(item, secret); err != nil {
			return nil, err
		}
	}

	if req.Credentials != nil {
		if err := s.sealCredentials(item, req.Credentials); err != nil {
			return nil, err
		}
	}

	if req.PlanMapping != nil {
		mapping, err := s.validatePlanMapping(ctx, orgID, req.PlanMapping)
		if err != nil {
			return nil, err
		}
		item.Settings = datatypes.NewJSONType(domain.Settings{PlanMapping: mapping})
	}

	item.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}

	s.log.Info("integration updated",
		zap.String("org_id", orgID.String()),
		zap.String("integration_id", item.ID.String()),
		zap.Bool("is_active", item.IsActive),
		zap.Bool("secret_changed", secret != ""))
	return &domain.Provisioned{Integration: item, WebhookSecret: secret}, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Integration, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrIntegrationNotFound
	}
	return item, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Integration, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, s.db, orgID)
}

func (s *Service) ResolveWebhookSecret(ctx context.Context, orgID snowflake.ID, provider string) (*domain.Integration, []byte, error) {
	item, err := s.repo.FindActive(ctx, s.db, orgID, domain.NormalizeProvider(provider))
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, domain.ErrIntegrationNotFound
	}

	secret, err := s.vault.Open([]byte(item.SealedWebhookSecret), associatedData(item, "webhook_secret"))
	if err != nil {
		return nil, nil, fmt.Errorf("open webhook secret: %w", err)
	}
	return item, secret, nil
}

func (s *Service) Credentials(ctx context.Context, orgID snowflake.ID, provider string) (map[string]any, error) {
	item, err := s.repo.FindActive(ctx, s.db, orgID, domain.NormalizeProvider(provider))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrIntegrationNotFound
	}

	out := map[string]any{}
	if item.SealedCredentials == "" {
		return out, nil
	}
	raw, err := s.vault.Open([]byte(item.SealedCredentials), associatedData(item, "credentials"))
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return out, nil
}

// MapExternalPlanToInternal looks through the organization's active
// integrations in creation order. No integration or no entry yields nil.
func (s *Service) MapExternalPlanToInternal(ctx context.Context, orgID snowflake.ID, externalPlanID string) (*snowflake.ID, error) {
	externalPlanID = strings.TrimSpace(externalPlanID)
	if externalPlanID == "" {
		return nil, nil
	}

	items, err := s.repo.ListActive(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if planID := items[i].MapPlan(externalPlanID); planID != nil {
			return planID, nil
		}
	}
	return nil, nil
}

func (s *Service) validatePlanMapping(ctx context.Context, orgID snowflake.ID, mapping map[string]string) (map[string]string, error) {
	if len(mapping) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(mapping))
	for external, internal := range mapping {
		external = strings.TrimSpace(external)
		if external == "" {
			return nil, domain.ErrInvalidPlanMapping
		}
		planID, err := snowflake.ParseString(strings.TrimSpace(internal))
		if err != nil || planID == 0 {
			return nil, domain.ErrInvalidPlanMapping
		}
		plan, err := s.productRepo.FindPlanForOrg(ctx, s.db, orgID, planID)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			return nil, productdomain.ErrPlanNotFound
		}
		out[external] = planID.String()
	}
	return out, nil
}

func (s *Service) sealSecret(item *domain.Integration, secret string) error {
	sealed, err := s.vault.Seal([]byte(secret), associatedData(item, "webhook_secret"))
	if err != nil {
		return fmt.Errorf("seal webhook secret: %w", err)
	}
	item.SealedWebhookSecret = string(sealed)
	return nil
}

func (s *Service) sealCredentials(item *domain.Integration, credentials map[string]any) error {
	if len(credentials) == 0 {
		item.SealedCredentials = ""
		return nil
	}
	raw, err := json.Marshal(credentials)
	if err != nil {
		return domain.ErrInvalidIntegration
	}
	sealed, err := s.vault.Seal(raw, associatedData(item, "credentials"))
	if err != nil {
		return fmt.Errorf("seal credentials: %w", err)
	}
	item.SealedCredentials = string(sealed)
	return nil
}

// associatedData binds a sealed value to its organization, provider and
// column so it cannot be swapped between rows.
func associatedData(item *domain.Integration, field string) []byte {
	return []byte("integration:" + item.OrgID.String() + ":" + item.Provider + ":" + field)
}

func generateSecret() string {
	return webhookSecretPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
