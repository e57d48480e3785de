package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spinwheel/internal/cache"
	"github.com/smallbiznis/spinwheel/internal/clock"
	"github.com/smallbiznis/spinwheel/internal/config"
	"github.com/smallbiznis/spinwheel/internal/event"
	"github.com/smallbiznis/spinwheel/internal/inventory"
	"github.com/smallbiznis/spinwheel/internal/migration"
	"github.com/smallbiznis/spinwheel/internal/observability"
	"github.com/smallbiznis/spinwheel/internal/ratelimit"
	"github.com/smallbiznis/spinwheel/internal/seed"
	"github.com/smallbiznis/spinwheel/internal/selector"
	"github.com/smallbiznis/spinwheel/internal/server"
	"github.com/smallbiznis/spinwheel/internal/session"
	"github.com/smallbiznis/spinwheel/internal/spin"
	"github.com/smallbiznis/spinwheel/internal/wheel"
	"github.com/smallbiznis/spinwheel/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		migration.Module,
		seed.Module,

		// Allocation
		wheel.Module,
		ratelimit.Module,
		event.Module,
		inventory.Module,
		session.Module,
		selector.Module,
		spin.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
