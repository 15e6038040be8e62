package migration

import (
	"context"

	"github.com/smallbiznis/complytics/internal/config"
	"github.com/smallbiznis/complytics/internal/seed"
	"github.com/smallbiznis/complytics/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	seed.Module,
	fx.Invoke(registerLifecycle),
)

// registerLifecycle runs after the database hook, so the pool has been
// pinged before the schema is touched.
func registerLifecycle(lc fx.Lifecycle, conn *gorm.DB, cfg config.Config, seeder *seed.Seeder, log *zap.Logger) {
	dbCfg := db.ConfigFrom(cfg)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := Apply(conn, dbCfg); err != nil {
				return err
			}
			log.Named("migrations").Info("schema ready", zap.String("dialect", dbCfg.Type))
			return seeder.EnsureSuperadmin(ctx)
		},
	})
}

// Apply brings the schema up to date for the configured dialect.
func Apply(conn *gorm.DB, cfg db.Config) error {
	if cfg.Type != db.TypePostgres {
		return AutoMigrate(conn)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
