package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/clock"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	productdomain "github.com/railzwaylabs/billingcore/internal/product/domain"
	"github.com/railzwaylabs/billingcore/internal/promotion/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,64}$`)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	ProductRepo productdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	productRepo productdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("promotion.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
	}
}

// Resolve returns the discount a code grants against BasePrice, or a
// NotFound-kind error when the code cannot be used.
func (s *Service) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.Resolution, error) {
	code := normalizeCode(req.Code)
	if code == "" || req.OrgID == 0 {
		return nil, domain.ErrPromotionNotFound
	}

	promotion, err := s.repo.FindByCode(ctx, s.db, req.OrgID, code)
	if err != nil {
		return nil, err
	}
	if promotion == nil {
		return nil, domain.ErrPromotionNotFound
	}

	eligibility := domain.Eligibility{
		Now:         s.clock.Now(ctx),
		BasePrice:   req.BasePrice,
		ProductID:   req.ProductID,
		CountryCode: strings.ToUpper(strings.TrimSpace(req.CountryCode)),
	}
	if req.CustomerID != 0 {
		uses, err := s.repo.CountCustomerUsage(ctx, s.db, promotion.ID, req.CustomerID)
		if err != nil {
			return nil, err
		}
		eligibility.CustomerKnown = true
		eligibility.CustomerUses = uses
	}
	if err := promotion.CheckEligibility(eligibility); err != nil {
		return nil, err
	}

	return &domain.Resolution{
		Promotion: promotion,
		Discount:  promotion.Discount(req.BasePrice),
	}, nil
}

func (s *Service) Validate(ctx context.Context, req domain.ValidateRequest) (*domain.Resolution, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := s.productRepo.FindPlanForOrg(ctx, s.db, orgID, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, productdomain.ErrPlanNotFound
	}
	return s.Resolve(ctx, domain.ResolveRequest{
		OrgID:       orgID,
		Code:        req.Code,
		CustomerID:  req.CustomerID,
		PlanID:      plan.ID,
		ProductID:   plan.ProductID,
		CountryCode: req.CountryCode,
		BasePrice:   plan.Price,
	})
}

func (s *Service) Create(ctx context.Context, req domain.CreatePromotionRequest) (*domain.Promotion, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}

	code := normalizeCode(req.Code)
	if !codePattern.MatchString(code) {
		return nil, domain.ErrInvalidCode
	}
	if !req.Type.Valid() {
		return nil, domain.ErrInvalidType
	}
	if req.Value < 0 || (req.Type == domain.TypePercentage && req.Value > 100) {
		return nil, domain.ErrInvalidValue
	}
	if req.MaxUses != nil && *req.MaxUses < 0 {
		return nil, domain.ErrInvalidValue
	}

	now := s.clock.Now(ctx)
	validFrom := now
	if req.ValidFrom != nil {
		validFrom = req.ValidFrom.UTC()
	}
	var validTo *time.Time
	if req.ValidTo != nil {
		to := req.ValidTo.UTC()
		if to.Before(validFrom) {
			return nil, domain.ErrInvalidWindow
		}
		validTo = &to
	}

	perCustomer := int64(1)
	if req.MaxUsesPerCustomer != nil {
		perCustomer = *req.MaxUsesPerCustomer
	}

	promotion := &domain.Promotion{
		ID:                  s.genID.Generate(),
		OrgID:               orgID,
		Code:                code,
		Name:                strings.TrimSpace(req.Name),
		Description:         req.Description,
		Type:                req.Type,
		Value:               req.Value,
		MinOrderValue:       req.MinOrderValue,
		MaxUses:             req.MaxUses,
		MaxUsesPerCustomer:  perCustomer,
		ValidFrom:           validFrom,
		ValidTo:             validTo,
		ApplicableProducts:  datatypes.JSONSlice[string](req.ApplicableProducts),
		ApplicableCountries: datatypes.JSONSlice[string](upperAll(req.ApplicableCountries)),
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.Insert(ctx, s.db, promotion); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrDuplicateCode
		}
		return nil, err
	}

	s.log.Info("promotion created",
		zap.String("org_id", orgID.String()),
		zap.String("promotion_id", promotion.ID.String()),
		zap.String("type", string(promotion.Type)))
	return promotion, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Promotion, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	promotion, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if promotion == nil {
		return nil, domain.ErrPromotionNotFound
	}
	return promotion, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Promotion, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, s.db, orgID)
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) error {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return err
	}
	updated, err := s.repo.SetActive(ctx, s.db, orgID, id, false, s.clock.Now(ctx))
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrPromotionNotFound
	}
	return nil
}

func (s *Service) RecordUsage(ctx context.Context, tx *gorm.DB, promotion *domain.Promotion, customerID, orderID snowflake.ID, amount int64) (bool, error) {
	if promotion == nil {
		return false, nil
	}
	now := s.clock.Now(ctx)

	claimed, err := s.repo.IncrementUses(ctx, tx, promotion.ID, now)
	if err != nil {
		return false, err
	}
	if !claimed {
		s.log.Warn("promotion exhausted while recording usage",
			zap.String("promotion_id", promotion.ID.String()),
			zap.String("order_id", orderID.String()))
		return false, nil
	}

	// The increment above holds the promotion row lock, so this count sees
	// every usage committed by a competing order of the same customer.
	if customerID != 0 && promotion.MaxUsesPerCustomer > 0 {
		used, err := s.repo.CountCustomerUsage(ctx, tx, promotion.ID, customerID)
		if err != nil {
			return false, err
		}
		if used >= promotion.MaxUsesPerCustomer {
			if err := s.repo.ReleaseUse(ctx, tx, promotion.ID, now); err != nil {
				return false, err
			}
			s.log.Warn("promotion per-customer limit reached while recording usage",
				zap.String("promotion_id", promotion.ID.String()),
				zap.String("customer_id", customerID.String()))
			return false, nil
		}
	}

	err = s.repo.InsertUsage(ctx, tx, &domain.Usage{
		ID:             s.genID.Generate(),
		PromotionID:    promotion.ID,
		CustomerID:     customerID,
		OrderID:        orderID,
		DiscountAmount: amount,
		UsedAt:         now,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func upperAll(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := strings.ToUpper(strings.TrimSpace(item)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
