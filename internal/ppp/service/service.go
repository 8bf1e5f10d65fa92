package service

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/clock"
	countrydomain "github.com/railzwaylabs/billingcore/internal/country/domain"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	"github.com/railzwaylabs/billingcore/internal/ppp/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	CountryRepo countrydomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	countryRepo countrydomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("ppp.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		countryRepo: p.CountryRepo,
	}
}

// CalculatePPPDiscount never fails for an unknown country; it reports 0 so
// checkout is not blocked by geographic gaps.
func (s *Service) CalculatePPPDiscount(ctx context.Context, countryCode string, orgID snowflake.ID) (int, error) {
	code := normalizeCode(countryCode)
	if code == "" || orgID == 0 {
		return 0, nil
	}

	country, err := s.countryRepo.FindByCode(ctx, s.db, code)
	if err != nil {
		return 0, err
	}
	if country == nil {
		return 0, nil
	}

	rules, err := s.repo.ListActive(ctx, s.db, orgID)
	if err != nil {
		return 0, err
	}
	return domain.ResolveDiscount(country.DiscountPercentage, rules, code), nil
}

func (s *Service) GetPPPDiscount(ctx context.Context, countryCode string) (*domain.Discount, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	code := normalizeCode(countryCode)
	if !countryCodePattern.MatchString(code) {
		return nil, domain.ErrCountryNotFound
	}

	country, err := s.countryRepo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if country == nil {
		return nil, domain.ErrCountryNotFound
	}

	rules, err := s.repo.ListActive(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}

	out := &domain.Discount{
		CountryCode:        country.Code,
		CountryName:        country.Name,
		Currency:           country.Currency,
		DiscountPercentage: country.DiscountPercentage,
	}
	if rule, ok := domain.SelectRule(rules, code); ok {
		out.DiscountPercentage = rule.Clamp(country.DiscountPercentage)
		ruleID := rule.ID
		out.RuleID = &ruleID
	}
	return out, nil
}

func (s *Service) CreateRule(ctx context.Context, req domain.CreateRuleRequest) (*domain.Rule, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	countries, err := s.validateCountries(ctx, req.Countries)
	if err != nil {
		return nil, err
	}
	if err := validateRange(req.MinDiscount, req.MaxDiscount); err != nil {
		return nil, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	now := s.clock.Now(ctx)
	rule := &domain.Rule{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Name:        name,
		Countries:   datatypes.JSONSlice[string](countries),
		MinDiscount: req.MinDiscount,
		MaxDiscount: req.MaxDiscount,
		Priority:    req.Priority,
		IsActive:    isActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, rule); err != nil {
		return nil, err
	}

	s.log.Info("ppp rule created",
		zap.String("org_id", orgID.String()),
		zap.String("rule_id", rule.ID.String()),
		zap.Strings("countries", countries))
	return rule, nil
}

func (s *Service) UpdateRule(ctx context.Context, id snowflake.ID, req domain.UpdateRuleRequest) (*domain.Rule, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}

	rule, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrRuleNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		rule.Name = name
	}
	if req.Countries != nil {
		countries, err := s.validateCountries(ctx, req.Countries)
		if err != nil {
			return nil, err
		}
		rule.Countries = datatypes.JSONSlice[string](countries)
	}
	if req.MinDiscount != nil {
		rule.MinDiscount = *req.MinDiscount
	}
	if req.MaxDiscount != nil {
		rule.MaxDiscount = *req.MaxDiscount
	}
	if err := validateRange(rule.MinDiscount, rule.MaxDiscount); err != nil {
		return nil, err
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	rule.UpdatedAt = s.clock.Now(ctx)

	if err := s.repo.Update(ctx, s.db, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *Service) DeleteRule(ctx context.Context, id snowflake.ID) error {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, s.db, orgID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrRuleNotFound
	}
	return nil
}

func (s *Service) GetRule(ctx context.Context, id snowflake.ID) (*domain.Rule, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	rule, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrRuleNotFound
	}
	return rule, nil
}

func (s *Service) ListRules(ctx context.Context) ([]domain.Rule, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, s.db, orgID)
}

func (s *Service) validateCountries(ctx context.Context, raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	codes := make([]string, 0, len(raw))
	for _, c := range raw {
		code := normalizeCode(c)
		if !countryCodePattern.MatchString(code) {
			return nil, domain.ErrInvalidCountries
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return nil, domain.ErrInvalidCountries
	}

	existing, err := s.countryRepo.ExistingCodes(ctx, s.db, codes)
	if err != nil {
		return nil, err
	}
	if len(existing) != len(codes) {
		return nil, domain.ErrUnknownCountry
	}
	sort.Strings(codes)
	return codes, nil
}

// validateRange rejects a clamp that could not be satisfied.
func validateRange(minDiscount, maxDiscount int) error {
	if minDiscount < 0 || maxDiscount > 100 || minDiscount > maxDiscount {
		return domain.ErrInvalidDiscount
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
