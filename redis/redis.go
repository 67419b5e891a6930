package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// InitRedis connects to addr. It returns nil when redis is unreachable, and the
// service keeps running without a cache.
func InitRedis(ctx context.Context, addr string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("redis not available, running without cache")
		client.Close()
		return nil
	}

	log.Info().Str("addr", addr).Msg("redis connected successfully")
	return client
}
