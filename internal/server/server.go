package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	analyticsdomain "github.com/railzwaylabs/billingcore/internal/analytics/domain"
	apikeydomain "github.com/railzwaylabs/billingcore/internal/apikey/domain"
	"github.com/railzwaylabs/billingcore/internal/authorization"
	"github.com/railzwaylabs/billingcore/internal/config"
	customerdomain "github.com/railzwaylabs/billingcore/internal/customer/domain"
	entitlementdomain "github.com/railzwaylabs/billingcore/internal/entitlement/domain"
	integrationdomain "github.com/railzwaylabs/billingcore/internal/integration/domain"
	orderdomain "github.com/railzwaylabs/billingcore/internal/order/domain"
	paymentdomain "github.com/railzwaylabs/billingcore/internal/payment/domain"
	pppdomain "github.com/railzwaylabs/billingcore/internal/ppp/domain"
	pricingdomain "github.com/railzwaylabs/billingcore/internal/pricing/domain"
	promotiondomain "github.com/railzwaylabs/billingcore/internal/promotion/domain"
	subscriptiondomain "github.com/railzwaylabs/billingcore/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxWebhookBody bounds the raw envelope read from providers.
const maxWebhookBody = 1 << 20

type Params struct {
	fx.In

	Config        config.Config
	Log           *zap.Logger
	DB            *gorm.DB
	Gatherer      prometheus.Gatherer `optional:"true"`
	Authorizer    *authorization.Authorizer
	APIKeys       apikeydomain.Service
	Customers     customerdomain.Service
	Orders        orderdomain.Service
	Subscriptions subscriptiondomain.Service
	PPP           pppdomain.Service
	Promotions    promotiondomain.Service
	Pricing       pricingdomain.Engine
	Integrations  integrationdomain.Service
	Entitlements  entitlementdomain.Service
	Analytics     analyticsdomain.Service
	Webhooks      paymentdomain.Reconciler
}

type Server struct {
	cfg             config.Config
	log             *zap.Logger
	db              *gorm.DB
	gatherer        prometheus.Gatherer
	authorizer      *authorization.Authorizer
	apiKeySvc       apikeydomain.Service
	customerSvc     customerdomain.Service
	orderSvc        orderdomain.Service
	subscriptionSvc subscriptiondomain.Service
	pppSvc          pppdomain.Service
	promotionSvc    promotiondomain.Service
	pricing         pricingdomain.Engine
	integrationSvc  integrationdomain.Service
	entitlementSvc  entitlementdomain.Service
	analyticsSvc    analyticsdomain.Service
	webhooks        paymentdomain.Reconciler
}

func New(p Params) *Server {
	return &Server{
		cfg:             p.Config,
		log:             p.Log.Named("server"),
		db:              p.DB,
		gatherer:        p.Gatherer,
		authorizer:      p.Authorizer,
		apiKeySvc:       p.APIKeys,
		customerSvc:     p.Customers,
		orderSvc:        p.Orders,
		subscriptionSvc: p.Subscriptions,
		pppSvc:          p.PPP,
		promotionSvc:    p.Promotions,
		pricing:         p.Pricing,
		integrationSvc:  p.Integrations,
		entitlementSvc:  p.Entitlements,
		analyticsSvc:    p.Analytics,
		webhooks:        p.Webhooks,
	}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(RequestID(), RequestLogger(s.log), Recovery(s.log))

	r.GET("/health", s.Health)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	r.POST("/webhooks/:org_id", s.HandlePaymentWebhook)
	r.POST("/webhooks/:org_id/:provider", s.HandlePaymentWebhook)

	api := r.Group("/api", s.APIKeyRequired())
	{
		api.GET("/pricing/quote", s.Authorize("pricing", authorization.ActionRead), s.GetPriceQuote)

		customers := api.Group("/customers")
		customers.POST("", s.Authorize("customers", authorization.ActionWrite), s.CreateCustomer)
		customers.GET("/:id", s.Authorize("customers", authorization.ActionRead), s.GetCustomer)
		customers.GET("/:id/features/:slug", s.Authorize("entitlements", authorization.ActionRead), s.CheckFeatureAccess)

		orders := api.Group("/orders")
		orders.POST("", s.Authorize("orders", authorization.ActionWrite), s.CreateOrder)
		orders.GET("", s.Authorize("orders", authorization.ActionRead), s.ListOrders)
		orders.GET("/:id", s.Authorize("orders", authorization.ActionRead), s.GetOrder)
		orders.PATCH("/:id/status", s.Authorize("orders", authorization.ActionWrite), s.UpdateOrderStatus)

		subscriptions := api.Group("/subscriptions")
		subscriptions.POST("", s.Authorize("subscriptions", authorization.ActionWrite), s.CreateSubscription)
		subscriptions.GET("", s.Authorize("subscriptions", authorization.ActionRead), s.ListSubscriptions)
		subscriptions.GET("/:id", s.Authorize("subscriptions", authorization.ActionRead), s.GetSubscription)
		subscriptions.POST("/:id/cancel", s.Authorize("subscriptions", authorization.ActionWrite), s.CancelSubscription)

		ppp := api.Group("/ppp")
		ppp.GET("/discount", s.Authorize("ppp", authorization.ActionRead), s.GetPPPDiscount)
		ppp.GET("/rules", s.Authorize("ppp", authorization.ActionRead), s.ListPPPRules)
		ppp.POST("/rules", s.Authorize("ppp", authorization.ActionWrite), s.CreatePPPRule)
		ppp.GET("/rules/:id", s.Authorize("ppp", authorization.ActionRead), s.GetPPPRule)
		ppp.PATCH("/rules/:id", s.Authorize("ppp", authorization.ActionWrite), s.UpdatePPPRule)
		ppp.DELETE("/rules/:id", s.Authorize("ppp", authorization.ActionWrite), s.DeletePPPRule)

		promotions := api.Group("/promotions")
		promotions.GET("", s.Authorize("promotions", authorization.ActionRead), s.ListPromotions)
		promotions.POST("", s.Authorize("promotions", authorization.ActionWrite), s.CreatePromotion)
		promotions.POST("/validate", s.Authorize("pricing", authorization.ActionRead), s.ValidatePromotion)
		promotions.GET("/:id", s.Authorize("promotions", authorization.ActionRead), s.GetPromotion)
		promotions.POST("/:id/deactivate", s.Authorize("promotions", authorization.ActionWrite), s.DeactivatePromotion)

		integrations := api.Group("/integrations")
		integrations.GET("", s.Authorize("integrations", authorization.ActionRead), s.ListIntegrations)
		integrations.POST("", s.Authorize("integrations", authorization.ActionWrite), s.CreateIntegration)
		integrations.PATCH("/:id", s.Authorize("integrations", authorization.ActionWrite), s.UpdateIntegration)

		features := api.Group("/features")
		features.GET("", s.Authorize("entitlements", authorization.ActionRead), s.ListFeatures)
		features.POST("", s.Authorize("entitlements", authorization.ActionWrite), s.CreateFeature)
		features.POST("/:slug/plans/:plan_id", s.Authorize("entitlements", authorization.ActionWrite), s.AttachFeatureToPlan)
		api.POST("/entitlements", s.Authorize("entitlements", authorization.ActionWrite), s.GrantEntitlement)

		analytics := api.Group("/analytics")
		analytics.GET("/events", s.Authorize("analytics", authorization.ActionRead), s.ListAnalyticsEvents)
		analytics.GET("/events/export", s.Authorize("analytics", authorization.ActionRead), s.ExportAnalyticsEvents)
		analytics.GET("/revenue", s.Authorize("analytics", authorization.ActionRead), s.GetRevenueSummary)
	}

	return r
}

// NewHTTPServer binds the handler to HTTP_ADDR for the lifetime of the app.
func NewHTTPServer(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
	return srv
}
