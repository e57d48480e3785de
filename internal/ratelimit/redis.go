package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/spinwheel/internal/clock"
)

// slidingLogScript keeps one sorted set per key scored by admission time in
// milliseconds. Entries older than the window are trimmed before counting.
const slidingLogScript = `
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[3])
local window = tonumber(ARGV[5])

redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])

local count = redis.call("ZCARD", KEYS[1])
if count >= limit then
  local retry = window
  local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
  if oldest[2] ~= nil then
    retry = tonumber(oldest[2]) + window - now
  end
  return {0, count, retry}
end

redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])

return {1, count + 1, 0}
`

// RedisLimiter runs the sliding log inside Redis so every instance shares
// the same admission state.
type RedisLimiter struct {
	client *redis.Client
	script *redis.Script
	clock  clock.Clock
	prefix string
}

func NewRedisLimiter(client *redis.Client, clk clock.Clock, prefix string) *RedisLimiter {
	if client == nil {
		return nil
	}
	if clk == nil {
		clk = clock.New()
	}
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(slidingLogScript),
		clock:  clk,
		prefix: prefix,
	}
}

func (l *RedisLimiter) Admit(ctx context.Context, key string, policy Policy) (Decision, error) {
	if l == nil || l.client == nil {
		return Decision{}, errors.New("rate limiter not configured")
	}
	if key == "" {
		return Decision{}, ErrEmptyKey
	}
	if err := policy.validate(); err != nil {
		return Decision{}, err
	}

	now := l.clock.Now().UnixMilli()
	windowMs := policy.Window.Milliseconds()
	if windowMs <= 0 {
		windowMs = 1
	}
	cutoff := "(" + strconv.FormatInt(now-windowMs, 10)

	res, err := l.script.Run(
		ctx,
		l.client,
		[]string{l.prefix + key},
		now,
		cutoff,
		policy.Limit,
		uuid.NewString(),
		windowMs,
	).Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) < 3 {
		return Decision{}, errors.New("invalid rate limit script response")
	}

	allowed := castToInt(res[0]) == 1
	count := int(castToInt(res[1]))
	retry := time.Duration(castToInt(res[2])) * time.Millisecond

	decision := Decision{
		Allowed:   allowed,
		Limit:     policy.Limit,
		Remaining: remaining(policy.Limit, count),
	}
	if !allowed {
		decision.RetryAfter = retry
	}
	return decision, nil
}

func castToInt(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		parsed, _ := strconv.ParseInt(val, 10, 64)
		return parsed
	default:
		return 0
	}
}
