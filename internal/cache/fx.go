package cache

import (
	"github.com/revspine/reconciler/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Module provides the Redis client and the dashboard read-through cache
// built over it.
var Module = fx.Module("cache",
	fx.Provide(
		NewRedisClient,
		NewDashboardCache,
	),
)

func NewRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
}
