package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/smallbiznis/spinwheel/internal/config"
	"github.com/smallbiznis/spinwheel/internal/migration"
	"github.com/smallbiznis/spinwheel/internal/observability"
	"github.com/smallbiznis/spinwheel/internal/seed"
	"github.com/smallbiznis/spinwheel/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	slug := flag.String("slug", "", "event slug (defaults to EVENT_SLUG)")
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	flag.Parse()

	if !*yes && !confirm(os.Stdin) {
		fmt.Println("Reset cancelled.")
		return
	}

	var runErr error
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) {
			runErr = run(conn, cfg, log, *slug)
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

func confirm(in *os.File) bool {
	fmt.Print("This will delete all spins and sessions. Continue? (yes/no): ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "yes")
}

func run(conn *gorm.DB, cfg config.Config, log *zap.Logger, slug string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if slug == "" {
		slug = cfg.EventSlug
	}

	res, err := seed.ResetEvent(ctx, conn, slug)
	if err != nil {
		if errors.Is(err, seed.ErrEventNotFound) {
			return fmt.Errorf("event %q not found, run the seed command first", slug)
		}
		return err
	}

	log.Info("event reset",
		zap.String("slug", slug),
		zap.Int64("spins_deleted", res.SpinsDeleted),
		zap.Int64("sessions_deleted", res.SessionsDeleted),
		zap.Int64("prizes_restored", res.PrizesRestored),
	)
	fmt.Println("Reset complete. Clear browser cookies to get a new session.")
	return nil
}
