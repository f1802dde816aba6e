package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tollgate:rl:"

// allowScript trims the sorted set to the window, then adds cost members
// if they fit. Returns {allowed, count, oldest_ms}.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local limit = tonumber(ARGV[4])
local member = ARGV[5]
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count + cost <= limit then
  for i = 1, cost do
    redis.call('ZADD', key, now, member .. ':' .. i)
  end
  count = count + cost
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then oldestScore = tonumber(oldest[2]) end
return {allowed, count, oldestScore}
`)

// Redis shares sliding windows across edge nodes.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps a go-redis client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// AllowN runs the admission check atomically on the server.
func (r *Redis) AllowN(ctx context.Context, key string, cost, limit int, win time.Duration, now time.Time) (Result, error) {
	nowMs := now.UnixMilli()
	res, err := allowScript.Run(ctx, r.client, []string{redisKeyPrefix + key},
		nowMs, win.Milliseconds(), cost, limit, uuid.NewString()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 3 {
		return Result{}, fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}
	reset := time.UnixMilli(res[2]).Add(win)
	if res[0] == 0 {
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: reset}, nil
	}
	return Result{Allowed: true, Limit: limit, Remaining: limit - int(res[1]), ResetAt: reset}, nil
}

// RefundN removes the cost most recent members of the window.
func (r *Redis) RefundN(ctx context.Context, key string, cost int) error {
	if err := r.client.ZPopMax(ctx, redisKeyPrefix+key, int64(cost)).Err(); err != nil {
		return fmt.Errorf("rate limit refund %s: %w", key, err)
	}
	return nil
}
