package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spinwheel/internal/cache"
	"github.com/smallbiznis/spinwheel/internal/clock"
	"github.com/smallbiznis/spinwheel/internal/config"
	"github.com/smallbiznis/spinwheel/internal/event"
	eventdomain "github.com/smallbiznis/spinwheel/internal/event/domain"
	"github.com/smallbiznis/spinwheel/internal/migration"
	"github.com/smallbiznis/spinwheel/internal/observability"
	"github.com/smallbiznis/spinwheel/internal/seed"
	"github.com/smallbiznis/spinwheel/internal/wheel"
	"github.com/smallbiznis/spinwheel/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	slug := flag.String("slug", "", "event slug (defaults to EVENT_SLUG)")
	name := flag.String("name", "", "event name (defaults to EVENT_NAME)")
	deactivate := flag.Bool("deactivate", false, "stop accepting spins for the event")
	activate := flag.Bool("activate", false, "accept spins for the event again")
	flag.Parse()

	if *activate && *deactivate {
		fmt.Fprintln(os.Stderr, "-activate and -deactivate are mutually exclusive")
		os.Exit(2)
	}

	var runErr error
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		migration.Module,
		wheel.Module,
		event.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config, w *wheel.Wheel, node *snowflake.Node, events eventdomain.Service, log *zap.Logger) {
			runErr = run(conn, cfg, w, node, events, log, *slug, *name, *activate, *deactivate)
		}),
	)
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = app.Stop(ctx)

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func run(conn *gorm.DB, cfg config.Config, w *wheel.Wheel, node *snowflake.Node, events eventdomain.Service, log *zap.Logger, slug, name string, activate, deactivate bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if slug == "" {
		slug = cfg.EventSlug
	}
	if name == "" {
		name = cfg.EventName
	}

	if activate || deactivate {
		if err := events.SetActive(ctx, slug, activate); err != nil {
			return fmt.Errorf("set event %q active=%t: %w", slug, activate, err)
		}
		log.Info("event updated", zap.String("slug", slug), zap.Bool("active", activate))
		return nil
	}

	res, err := seed.EnsureDefaultEvent(ctx, conn, node, w, slug, name)
	if err != nil {
		return err
	}
	if !res.EventCreated && res.PrizesCreated == 0 {
		log.Info("event already seeded, nothing to do", zap.String("slug", res.Event.Slug))
		return nil
	}
	log.Info("event seeded",
		zap.String("slug", res.Event.Slug),
		zap.Bool("event_created", res.EventCreated),
		zap.Int("prizes_created", res.PrizesCreated),
	)
	return nil
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
