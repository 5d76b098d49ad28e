package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "fmt"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/standupsydney/ticket-reconciliation/internal/config"
)

// cachedResponse is the envelope stored in Redis for one cached stats
// read.  Body is raw bytes; encoding/json base64-encodes it, which is
// fine for the small payloads this endpoint produces.
type cachedResponse struct {
    Status      int    `json:"status"`
    ContentType string `json:"content_type"`
    Body        []byte `json:"body"`
}

// bodyRecorder tees the handler's response into a buffer so a 200 can
// be stored after it has been sent to the client.
type bodyRecorder struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    limit  int
}

func (r *bodyRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
    if r.limit <= 0 || r.buf.Len()+len(b) <= r.limit {
        r.buf.Write(b)
    } else {
        // Oversized responses are served but never cached.
        r.buf.Reset()
        r.limit = -1
    }
    return r.ResponseWriter.Write(b)
}

// NewRedisCache serves repeated GETs of the reconciliation stats
// endpoint from Redis for a short TTL.  Only 200 responses are stored.
// Cache misses and Redis failures fall through to the handler, so a
// dead Redis costs latency, never correctness.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passthrough
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if c.Request().Method != http.MethodGet {
                return next(c)
            }
            key := cacheKey(cfg.Prefix, c)
            ctx := c.Request().Context()

            if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
                var cached cachedResponse
                if json.Unmarshal(raw, &cached) == nil {
                    c.Response().Header().Set(echo.HeaderContentType, cached.ContentType)
                    c.Response().Header().Set("X-Cache", "HIT")
                    return c.Blob(cached.Status, cached.ContentType, cached.Body)
                }
            }

            rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }

            if rec.status == http.StatusOK && rec.limit >= 0 {
                payload, err := json.Marshal(cachedResponse{
                    Status:      rec.status,
                    ContentType: c.Response().Header().Get(echo.HeaderContentType),
                    Body:        rec.buf.Bytes(),
                })
                if err == nil {
                    // The request context may already be done once the
                    // response has been written.
                    if err := rdb.Set(context.Background(), key, payload, cfg.TTL).Err(); err != nil {
                        c.Logger().Warnf("cache: store %s failed: %v", key, err)
                    }
                }
            }
            return nil
        }
    }
}

// cacheKey hashes path and query so one event's stats never collide
// with another's and keys stay a fixed length.
func cacheKey(prefix string, c echo.Context) string {
    r := c.Request()
    sum := sha1.Sum([]byte(r.URL.Path + "?" + r.URL.RawQuery))
    return fmt.Sprintf("%s:%x", prefix, sum)
}
