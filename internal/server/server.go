package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/loyalty/internal/config"
	"github.com/smallbiznis/loyalty/internal/customer"
	customerdomain "github.com/smallbiznis/loyalty/internal/customer/domain"
	"github.com/smallbiznis/loyalty/internal/loyalty"
	loyaltydomain "github.com/smallbiznis/loyalty/internal/loyalty/domain"
	"github.com/smallbiznis/loyalty/internal/observability"
	obsmiddleware "github.com/smallbiznis/loyalty/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/loyalty/internal/observability/metrics"
	"github.com/smallbiznis/loyalty/internal/offer"
	offerdomain "github.com/smallbiznis/loyalty/internal/offer/domain"
	"github.com/smallbiznis/loyalty/internal/reporting"
	reportingdomain "github.com/smallbiznis/loyalty/internal/reporting/domain"
	"github.com/smallbiznis/loyalty/internal/tier"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	customer.Module,
	tier.Module,
	loyalty.Module,
	offer.Module,
	reporting.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, m *obsmetrics.Metrics, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug: obsCfg.Debug(),
	}))
	r.Use(obsmetrics.GinMiddleware(m))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(obsCfg observability.Config, m *obsmetrics.Metrics, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(obsCfg, m, registry)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	genID        *snowflake.Node
	customerSvc  customerdomain.Service
	tierSvc      tierdomain.Service
	loyaltySvc   loyaltydomain.Service
	offerSvc     offerdomain.Service
	reportingSvc reportingdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	CustomerSvc  customerdomain.Service
	TierSvc      tierdomain.Service
	LoyaltySvc   loyaltydomain.Service
	OfferSvc     offerdomain.Service
	ReportingSvc reportingdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		customerSvc:  p.CustomerSvc,
		tierSvc:      p.TierSvc,
		loyaltySvc:   p.LoyaltySvc,
		offerSvc:     p.OfferSvc,
		reportingSvc: p.ReportingSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.TenantContext())

	// -------- Customers --------
	api.GET("/customers", s.ListCustomers)
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers/:id", s.GetCustomerByID)
	api.POST("/customers/:id/deactivate", s.DeactivateCustomer)

	// -------- Points --------
	api.POST("/points/award", s.AwardPoints)
	api.POST("/points/redeem", s.RedeemPoints)
	api.GET("/customers/:id/balance", s.GetBalance)
	api.GET("/customers/:id/transactions", s.ListTransactions)

	// -------- Offers --------
	api.GET("/customers/:id/offers", s.ListOffersForCustomer)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.TenantContext())

	// -------- Tiers --------
	admin.GET("/tiers", s.ListTiers)
	admin.PUT("/tiers", s.UpsertTier)

	// -------- Adjustments --------
	admin.POST("/points/adjust", s.AdjustPoints)

	// -------- Settings --------
	admin.GET("/settings", s.GetSettings)
	admin.PUT("/settings", s.UpdateSettings)

	// -------- Offers --------
	admin.GET("/offers", s.ListOffers)
	admin.POST("/offers", s.CreateOffer)
	admin.POST("/offers/:id/deactivate", s.DeactivateOffer)

	// -------- Reports --------
	admin.GET("/reports/overview", s.GetReportOverview)
	admin.GET("/reports/top-customers", s.GetTopCustomers)
}
