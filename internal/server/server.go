package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/revspine/reconciler/internal/config"
	"github.com/revspine/reconciler/internal/observability"
	obsmiddleware "github.com/revspine/reconciler/internal/observability/logger"
	obstracing "github.com/revspine/reconciler/internal/observability/tracing"
	"github.com/revspine/reconciler/internal/session/domain"
)

// Module wires the gin engine, the reconciliation-session handlers, and the
// HTTP server lifecycle into the fx graph.
var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
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

// Server holds the HTTP handlers for every operation the session Manager
// exposes. One Server instance is process-wide.
type Server struct {
	engine  *gin.Engine
	cfg     config.Config
	manager domain.Manager
}

type ServerParams struct {
	fx.In

	Gin     *gin.Engine
	Cfg     config.Config
	Manager domain.Manager
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:  p.Gin,
		cfg:     p.Cfg,
		manager: p.Manager,
	}

	svc.registerSessionRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerSessionRoutes() {
	api := s.engine.Group("/api")

	sessions := api.Group("/sessions")
	sessions.POST("", s.CreateSession)
	sessions.POST("/:session_id/validate", s.ValidateSession)

	sessions.GET("/:session_id/identity", s.GetIdentity)
	sessions.POST("/:session_id/identity/:match_id/decide", s.DecideIdentity)
	sessions.POST("/:session_id/identity/undo", s.UndoIdentity)
	sessions.POST("/:session_id/identity/reset", s.ResetIdentity)

	sessions.POST("/:session_id/analyze", s.AnalyzeSession)
	sessions.GET("/:session_id/status", s.GetStatus)
	sessions.POST("/:session_id/cancel", s.CancelSession)

	sessions.GET("/:session_id/dashboard", s.GetDashboard)
	sessions.GET("/:session_id/accounts", s.ListAccounts)
	sessions.GET("/:session_id/lineage/:rsx_id", s.GetLineage)
	sessions.GET("/:session_id/exclusions", s.ListExclusions)
}
