package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/spinwheel/internal/config"
	"github.com/smallbiznis/spinwheel/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprom "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Config     config.Config
	Log        *zap.Logger
	GormLogger *logger.GormLogger `optional:"true"`
}

// New opens the configured database with tracing and pool stats attached.
func New(p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Config)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
	if p.GormLogger != nil {
		gormCfg.Logger = p.GormLogger
	}

	conn, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.Config.DBType, err)
	}

	if err := conn.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName(p.Config.DBName),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		return nil, fmt.Errorf("register otelgorm: %w", err)
	}

	if err := conn.Use(gormprom.New(gormprom.Config{
		DBName:          poolLabel(p.Config),
		RefreshInterval: 15,
		StartServer:     false,
	})); err != nil {
		return nil, fmt.Errorf("register gorm prometheus: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	configurePool(sqlDB, p.Config)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		},
		OnStop: func(ctx context.Context) error {
			p.Log.Info("closing database connection")
			return sqlDB.Close()
		},
	})

	p.Log.Info("database connected",
		zap.String("type", p.Config.DBType),
		zap.String("dialector", conn.Dialector.Name()),
	)
	return conn, nil
}

type poolSettings interface {
	SetMaxIdleConns(int)
	SetMaxOpenConns(int)
	SetConnMaxLifetime(time.Duration)
	SetConnMaxIdleTime(time.Duration)
}

func configurePool(sqlDB poolSettings, cfg config.Config) {
	if strings.EqualFold(cfg.DBType, "sqlite") {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		return
	}
	if cfg.DBMaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	}
	if cfg.DBMaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	}
	if cfg.DBConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)
	}
	if cfg.DBConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTime) * time.Second)
	}
}

func poolLabel(cfg config.Config) string {
	if name := strings.TrimSpace(cfg.DBName); name != "" && !strings.EqualFold(cfg.DBType, "sqlite") {
		return name
	}
	return "spinwheel"
}
