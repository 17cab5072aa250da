package session

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/revspine/reconciler/internal/migration"
	"github.com/revspine/reconciler/internal/session/service"
	"github.com/revspine/reconciler/internal/session/store"
	"github.com/revspine/reconciler/pkg/db"
)

// Module provides the session store and the orchestrating Manager, and
// migrates the sessions/session_data tables on startup.
var Module = fx.Module("session",
	fx.Provide(
		store.NewStore,
		service.NewManager,
	),
	fx.Invoke(registerMigration),
)

// registerMigration applies the versioned postgres schema via
// internal/migration for multi-instance deployments, falling back to
// gorm.AutoMigrate for the embedded sqlite single-instance deployment.
func registerMigration(lc fx.Lifecycle, gdb *gorm.DB, cfg db.Config, st *store.Store) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Type == "postgres" {
				sqlDB, err := gdb.DB()
				if err != nil {
					return err
				}
				return migration.RunMigrations(sqlDB)
			}
			return st.Migrate(ctx)
		},
	})
}
