package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/analytics/domain"
	"github.com/railzwaylabs/billingcore/internal/clock"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("analytics.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, orgID snowflake.ID, customerID *snowflake.ID, eventType string, data map[string]any) (*domain.Event, error) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" || len(eventType) > 128 {
		return nil, domain.ErrInvalidEventType
	}

	event := &domain.Event{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		CustomerID: customerID,
		EventType:  eventType,
		EventData:  datatypes.JSONMap(data),
		CreatedAt:  s.clock.Now(ctx),
	}
	if err := s.repo.Insert(ctx, s.db, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Service) ListEvents(ctx context.Context, req domain.ListEventsRequest) ([]domain.Event, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}

	req.TypePrefix = strings.TrimSpace(req.TypePrefix)
	switch {
	case req.Limit <= 0:
		req.Limit = domain.DefaultListLimit
	case req.Limit > domain.MaxListLimit:
		req.Limit = domain.MaxListLimit
	}
	return s.repo.List(ctx, s.db, orgID, req)
}

// RevenueSummary totals completed orders in [From, To). A zero window
// covers the last 30 days.
func (s *Service) RevenueSummary(ctx context.Context, req domain.RevenueRequest) (*domain.RevenueSummary, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}

	if req.To.IsZero() {
		req.To = s.clock.Now(ctx)
	}
	if req.From.IsZero() {
		req.From = req.To.Add(-domain.DefaultWindow)
	}
	if !req.From.Before(req.To) {
		return nil, domain.ErrInvalidWindow
	}

	rows, err := s.repo.CompletedRevenue(ctx, s.db, orgID, req.From, req.To)
	if err != nil {
		return nil, err
	}
	live, err := s.repo.CountLiveSubscriptions(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}

	summary := &domain.RevenueSummary{
		From:                req.From,
		To:                  req.To,
		ActiveSubscriptions: live,
		ByCurrency:          rows,
	}
	if summary.ByCurrency == nil {
		summary.ByCurrency = []domain.CurrencyRevenue{}
	}
	for _, row := range rows {
		summary.Revenue += row.Revenue
		summary.CompletedOrders += row.Orders
	}
	return summary, nil
}
