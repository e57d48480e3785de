package ratelimit

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/spinwheel/internal/clock"
	"github.com/smallbiznis/spinwheel/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(Provide),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Clock     clock.Clock
	Log       *zap.Logger
}

// Provide selects the Redis limiter when an address is configured and falls
// back to the in-memory limiter otherwise.
func Provide(p Params) Limiter {
	log := p.Log.Named("ratelimit")
	cfg := p.Config.RateLimit

	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: strings.TrimSpace(cfg.RedisPassword),
			DB:       cfg.RedisDB,
		})
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
		log.Info("using redis rate limiter", zap.String("addr", addr))
		return NewRedisLimiter(client, p.Clock, cfg.KeyPrefix)
	}

	limiter := NewMemoryLimiter(p.Clock)
	interval := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						if n := limiter.Sweep(); n > 0 {
							log.Debug("swept idle rate limit keys", zap.Int("removed", n))
						}
					case <-stop:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})

	log.Info("using in-memory rate limiter", zap.Duration("sweep_interval", interval))
	return limiter
}
