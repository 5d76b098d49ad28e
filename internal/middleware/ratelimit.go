package middleware

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/standupsydney/ticket-reconciliation/internal/config"
)

// tokenBucketScript implements a continuously refilling token bucket
// in a single Redis round trip.  State lives in one hash per bucket:
// the remaining tokens and the timestamp of the last refill.  Running
// it as a script keeps the read-modify-write atomic across service
// replicas.
var tokenBucketScript = redis.NewScript(`
    local tokens = tonumber(redis.call('HGET', KEYS[1], 't') or ARGV[2])
    local last   = tonumber(redis.call('HGET', KEYS[1], 'ts') or ARGV[1])
    local now_ms      = tonumber(ARGV[1])
    local capacity    = tonumber(ARGV[2])
    local refill      = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])

    if interval_ms > 0 and refill > 0 and now_ms > last then
        local steps = math.floor((now_ms - last) / interval_ms)
        if steps > 0 then
            tokens = math.min(capacity, tokens + steps * refill)
            last = last + steps * interval_ms
        end
    end

    local retry_ms = 0
    if tokens > 0 then
        tokens = tokens - 1
    else
        retry_ms = interval_ms - (now_ms - last)
        if retry_ms < 0 then retry_ms = 0 end
    end

    redis.call('HSET', KEYS[1], 't', tokens, 'ts', last)
    redis.call('EXPIRE', KEYS[1], ARGV[5])
    return { retry_ms, tokens }
`)

// NewTokenBucket rate-limits the manual reconcile trigger per
// operator.  Each allowed request spends one token; an empty bucket
// answers 429 with a Retry-After hint.  A nil Redis client or a Redis
// error lets the request through: losing the limit is preferable to
// blocking reconciliation when Redis is down.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passthrough
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            caller, _ := c.Get("user_id").(string)
            if caller == "" {
                caller = c.RealIP()
            }
            key := "recon:rl:" + caller

            res, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key},
                time.Now().UnixMilli(),
                cfg.Capacity,
                cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(),
                int64(cfg.TTL/time.Second),
            ).Int64Slice()
            if err != nil || len(res) != 2 {
                c.Logger().Warnf("ratelimit: script failed for %s: %v", key, err)
                return next(c)
            }
            retryMs, remaining := res[0], res[1]

            c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
            if retryMs > 0 {
                secs := (retryMs + 999) / 1000
                c.Response().Header().Set("Retry-After", strconv.FormatInt(secs, 10))
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "too many reconciliation requests",
                    "retry_after": secs,
                })
            }
            return next(c)
        }
    }
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc {
    return func(c echo.Context) error { return next(c) }
}
