package cache

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/paywall/internal/platform/reachability"
	"github.com/fatflowers/paywall/pkg/config"
)

// NewStore selects the cache backend. The sqlite store is the on-device
// default; redis serves hosts that embed the engine next to one.
func NewStore(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger) Store {
	if cfg.Cache.Backend == "redis" {
		log.Infow("using redis cache store", "addr", cfg.Cache.RedisAddr)
		return NewRedisStore(redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		}))
	}
	return NewGormStore(db)
}

var Module = fx.Options(
	fx.Provide(NewStore),
	fx.Provide(func(o *reachability.Observer) Prober { return o }),
	fx.Provide(NewService),
)
