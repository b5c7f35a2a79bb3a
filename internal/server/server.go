package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/transitbase/faretable/internal/baseprice"
	basepricedomain "github.com/transitbase/faretable/internal/baseprice/domain"
	"github.com/transitbase/faretable/internal/catalog"
	catalogdomain "github.com/transitbase/faretable/internal/catalog/domain"
	"github.com/transitbase/faretable/internal/clientprice"
	clientpricedomain "github.com/transitbase/faretable/internal/clientprice/domain"
	"github.com/transitbase/faretable/internal/clock"
	"github.com/transitbase/faretable/internal/config"
	"github.com/transitbase/faretable/internal/lock"
	"github.com/transitbase/faretable/internal/observability"
	obsmiddleware "github.com/transitbase/faretable/internal/observability/logger"
	obsmetrics "github.com/transitbase/faretable/internal/observability/metrics"
	obstracing "github.com/transitbase/faretable/internal/observability/tracing"
	"github.com/transitbase/faretable/internal/resolver"
	resolverdomain "github.com/transitbase/faretable/internal/resolver/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	clock.Module,
	lock.Module,
	fx.Provide(registerGin),
	catalog.Module,
	baseprice.Module,
	clientprice.Module,
	resolver.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	catalogSvc     catalogdomain.Service
	basePriceSvc   basepricedomain.Service
	clientPriceSvc clientpricedomain.Service
	resolverSvc    resolverdomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	GenID          *snowflake.Node
	CatalogSvc     catalogdomain.Service
	BasePriceSvc   basepricedomain.Service
	ClientPriceSvc clientpricedomain.Service
	ResolverSvc    resolverdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		genID:          p.GenID,
		catalogSvc:     p.CatalogSvc,
		basePriceSvc:   p.BasePriceSvc,
		clientPriceSvc: p.ClientPriceSvc,
		resolverSvc:    p.ResolverSvc,
	}

	svc.registerCatalogRoutes()
	svc.registerPricingRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerCatalogRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/pois", s.CreatePoi)
	v1.GET("/pois", s.ListPois)
	v1.DELETE("/pois/:id", s.DeletePoi)

	v1.POST("/vehicle-types", s.CreateVehicleType)
	v1.GET("/vehicle-types", s.ListVehicleTypes)
	v1.DELETE("/vehicle-types/:id", s.DeleteVehicleType)

	v1.POST("/rates", s.CreateRate)
	v1.GET("/rates", s.ListRates)
	v1.DELETE("/rates/:id", s.DeleteRate)

	v1.POST("/services", s.CreateService)
	v1.GET("/services", s.ListServices)
	v1.GET("/services/:id", s.GetService)
	v1.DELETE("/services/:id", s.DeleteService)
}

func (s *Server) registerPricingRoutes() {
	v1 := s.engine.Group("/v1")

	v1.PUT("/services/:id/base-prices", s.SetBasePrice)
	v1.GET("/services/:id/base-prices", s.ListBasePrices)
	v1.DELETE("/base-prices/:id", s.DeleteBasePrice)

	v1.GET("/services/:id/prices", s.ResolvePrices)

	v1.PUT("/services/:id/clients/:clientID/prices", s.ApplyClientPrices)
	v1.GET("/services/:id/clients/:clientID/price-history", s.ClientPriceHistory)
	v1.GET("/services/:id/clients/:clientID/orphan-prices", s.ClientOrphanPrices)
}
