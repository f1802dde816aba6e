package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tollgate:pop:jti:"

// Redis is a replay cache shared by every node pointing at the same Redis.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis constructs a Redis-backed replay cache.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Remember uses SET NX with an expiry at the deadline, so the first node to
// see an id wins atomically.
func (r *Redis) Remember(ctx context.Context, id string, until, now time.Time) (bool, error) {
	ttl := until.Sub(now)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	ok, err := r.client.SetNX(ctx, keyPrefix+id, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("record proof id: %w", err)
	}
	return ok, nil
}
