package main

import (
	"go.uber.org/fx"

	"github.com/revspine/reconciler/internal/cache"
	"github.com/revspine/reconciler/internal/config"
	"github.com/revspine/reconciler/internal/idgen"
	"github.com/revspine/reconciler/internal/ingestion"
	"github.com/revspine/reconciler/internal/lifecycle"
	"github.com/revspine/reconciler/internal/observability"
	"github.com/revspine/reconciler/internal/reconciliation"
	"github.com/revspine/reconciler/internal/scoring"
	"github.com/revspine/reconciler/internal/server"
	"github.com/revspine/reconciler/internal/session"
	"github.com/revspine/reconciler/pkg/db"
)

var version = "dev"

func main() {
	app := fx.New(
		fx.Provide(config.Load),
		fx.Provide(config.NewEngineConfigHolder),
		fx.Provide(dbConfigFromProcessConfig),

		observability.Module,
		idgen.Module,
		db.Module,
		cache.Module,

		ingestion.Module,
		lifecycle.Module,
		reconciliation.Module,
		scoring.Module,
		session.Module,

		server.Module,
	)
	app.Run()
}

func dbConfigFromProcessConfig(cfg config.Config) db.Config {
	return db.Config{
		Type:            cfg.DBType,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		SSLMode:         cfg.DBSSLMode,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	}
}
