package seed

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spinwheel/internal/config"
	"github.com/smallbiznis/spinwheel/internal/wheel"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module seeds the configured event on startup when bootstrap is enabled.
// It must be registered after the migrations module.
var Module = fx.Module("seed",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, w *wheel.Wheel, node *snowflake.Node, log *zap.Logger) error {
		if !cfg.Bootstrap.SeedDefaultEvent {
			return nil
		}
		res, err := EnsureDefaultEvent(context.Background(), conn, node, w, cfg.EventSlug, cfg.EventName)
		if err != nil {
			return err
		}
		log.Named("seed").Info("event bootstrap",
			zap.String("slug", res.Event.Slug),
			zap.Bool("event_created", res.EventCreated),
			zap.Int("prizes_created", res.PrizesCreated),
		)
		return nil
	}),
)
