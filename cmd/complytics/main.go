package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/complytics/internal/clock"
	"github.com/smallbiznis/complytics/internal/config"
	"github.com/smallbiznis/complytics/internal/lock"
	"github.com/smallbiznis/complytics/internal/migration"
	"github.com/smallbiznis/complytics/internal/notification"
	"github.com/smallbiznis/complytics/internal/observability"
	"github.com/smallbiznis/complytics/internal/providers"
	"github.com/smallbiznis/complytics/internal/server"
	"github.com/smallbiznis/complytics/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,

		// Delivery
		providers.Module,
		notification.Module,

		// Schema and bootstrap superadmin run before the listener opens.
		migration.Module,
		server.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
