package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/branchledger/internal/clock"
	clouddomain "github.com/smallbiznis/branchledger/internal/cloud/domain"
	"github.com/smallbiznis/branchledger/internal/config"
	"github.com/smallbiznis/branchledger/internal/health"
	"github.com/smallbiznis/branchledger/internal/observability"
	obsmiddleware "github.com/smallbiznis/branchledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/branchledger/internal/observability/metrics"
	obstracing "github.com/smallbiznis/branchledger/internal/observability/tracing"
	posdomain "github.com/smallbiznis/branchledger/internal/pos/domain"
	"github.com/smallbiznis/branchledger/internal/replicator"
	"github.com/smallbiznis/branchledger/internal/status"
	"github.com/smallbiznis/branchledger/internal/tenant"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, probe *health.Probe) *gin.Engine {
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
		c.JSON(http.StatusOK, probe.Check(c.Request.Context()))
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, probe *health.Probe) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics, probe)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
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
	engine    *gin.Engine
	cfg       config.Config
	router    *tenant.Router
	posSvc    posdomain.Service
	cloud     clouddomain.Store
	statusSvc *status.Service
	worker    *replicator.Worker
	clock     clock.Clock
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Router    *tenant.Router
	PosSvc    posdomain.Service
	Cloud     clouddomain.Store
	StatusSvc *status.Service
	Worker    *replicator.Worker
	Clock     clock.Clock
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		router:    p.Router,
		posSvc:    p.PosSvc,
		cloud:     p.Cloud,
		statusSvc: p.StatusSvc,
		worker:    p.Worker,
		clock:     p.Clock,
	}

	svc.registerSaleRoutes()
	svc.registerSyncRoutes()
	svc.registerReportRoutes()

	return svc
}
