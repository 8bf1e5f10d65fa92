package domain

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/apperror"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrIntegrationNotFound = apperror.New(apperror.KindNotFound, "integration_not_found")
	ErrInvalidIntegration  = apperror.New(apperror.KindBadRequest, "invalid_integration")
	ErrInvalidProvider     = apperror.New(apperror.KindBadRequest, "invalid_provider")
	ErrInvalidPlanMapping  = apperror.New(apperror.KindBadRequest, "invalid_plan_mapping")
	ErrDuplicateProvider   = apperror.New(apperror.KindConflict, "integration_already_exists")
)

// Payment providers with a registered webhook verifier.
const (
	ProviderStripe = "stripe"
	ProviderPaddle = "paddle"
	ProviderHMAC   = "hmac"
)

const DefaultProvider = ProviderStripe

func NormalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return DefaultProvider
	}
	return provider
}

func ValidProvider(provider string) bool {
	switch provider {
	case ProviderStripe, ProviderPaddle, ProviderHMAC:
		return true
	}
	return false
}

type Settings struct {
	// PlanMapping maps a provider plan id to an internal pricing plan id.
	PlanMapping map[string]string `json:"planMapping,omitempty"`
}

// Integration holds one organization's credentials for a payment
// provider. Credentials and the webhook secret are stored sealed.
type Integration struct {
	ID                  snowflake.ID                 `json:"id" gorm:"primaryKey"`
	OrgID               snowflake.ID                 `json:"org_id" gorm:"not null;uniqueIndex:ux_integrations_org_provider,priority:1"`
	Provider            string                       `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_integrations_org_provider,priority:2"`
	IsActive            bool                         `json:"is_active" gorm:"not null"`
	SealedCredentials   string                       `json:"-" gorm:"column:credentials;type:text"`
	SealedWebhookSecret string                       `json:"-" gorm:"column:webhook_secret;type:text;not null"`
	Settings            datatypes.JSONType[Settings] `json:"settings"`
	CreatedAt           time.Time                    `json:"created_at"`
	UpdatedAt           time.Time                    `json:"updated_at"`
}

func (Integration) TableName() string {
	return "integrations"
}

// MapPlan returns the internal plan id mapped to externalPlanID, or nil.
func (i *Integration) MapPlan(externalPlanID string) *snowflake.ID {
	if i == nil || externalPlanID == "" {
		return nil
	}
	raw, ok := i.Settings.Data().PlanMapping[externalPlanID]
	if !ok {
		return nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return nil
	}
	return &id
}

// Provisioned is returned once on create or secret rotation so the caller
// can configure the provider side.
type Provisioned struct {
	*Integration
	WebhookSecret string `json:"webhook_secret"`
}

type CreateIntegrationRequest struct {
	Provider      string            `json:"provider" binding:"required"`
	WebhookSecret string            `json:"webhook_secret"`
	Credentials   map[string]any    `json:"credentials"`
	PlanMapping   map[string]string `json:"plan_mapping"`
	IsActive      *bool             `json:"is_active"`
}

type UpdateIntegrationRequest struct {
	IsActive      *bool             `json:"is_active"`
	WebhookSecret *string           `json:"webhook_secret"`
	RotateSecret  bool              `json:"rotate_secret"`
	Credentials   map[string]any    `json:"credentials"`
	PlanMapping   map[string]string `json:"plan_mapping"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, integration *Integration) error
	Update(ctx context.Context, db *gorm.DB, integration *Integration) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Integration, error)
	FindActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID, provider string) (*Integration, error)
	ListActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Integration, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Integration, error)
}

type Service interface {
	Create(ctx context.Context, req CreateIntegrationRequest) (*Provisioned, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateIntegrationRequest) (*Provisioned, error)
	Get(ctx context.Context, id snowflake.ID) (*Integration, error)
	List(ctx context.Context) ([]Integration, error)
	// ResolveWebhookSecret returns the active integration for provider and
	// its unsealed webhook secret.
	ResolveWebhookSecret(ctx context.Context, orgID snowflake.ID, provider string) (*Integration, []byte, error)
	Credentials(ctx context.Context, orgID snowflake.ID, provider string) (map[string]any, error)
	MapExternalPlanToInternal(ctx context.Context, orgID snowflake.ID, externalPlanID string) (*snowflake.ID, error)
}
