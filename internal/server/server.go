package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/spinwheel/internal/config"
	"github.com/smallbiznis/spinwheel/internal/observability"
	obslogger "github.com/smallbiznis/spinwheel/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/spinwheel/internal/observability/metrics"
	obstracing "github.com/smallbiznis/spinwheel/internal/observability/tracing"
	spindomain "github.com/smallbiznis/spinwheel/internal/spin/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	Cfg         config.Config
	ObsCfg      observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func NewEngine(p EngineParams) (*gin.Engine, error) {
	if !p.ObsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// The limiter keys on ClientIP, so forwarded headers count only from
	// listed proxies.
	if err := r.SetTrustedProxies(p.Cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(p.Cfg))
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           p.ObsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if p.HTTPMetrics != nil {
		r.Use(p.HTTPMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r, nil
}

func registerGin(p EngineParams) (*gin.Engine, error) {
	return NewEngine(p)
}

func corsMiddleware(cfg config.Config) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-Id", "X-Correlation-Id", "traceparent"},
		ExposeHeaders:    []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	return cors.New(corsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine  *gin.Engine
	cfg     config.Config
	spinSvc spindomain.Service
}

type ServerParams struct {
	fx.In

	Gin     *gin.Engine
	Cfg     config.Config
	SpinSvc spindomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:  p.Gin,
		cfg:     p.Cfg,
		spinSvc: p.SpinSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/spin", s.Spin)
	api.GET("/status", s.Status)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin")

	admin.GET("/inventory", s.AdminInventory)
	admin.GET("/spins", s.AdminSpins)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
