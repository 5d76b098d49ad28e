package config

import (
    "context"
    "log"
    "time"

    "github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the Redis instance backing the reconcile
// trigger rate limit and the stats response cache.  Redis is strictly
// optional for this service: when the connection cannot be established
// the function returns nil and both middlewares degrade to
// pass-through, so reconciliation itself keeps working.
//
// Environment variables:
//   REDIS_ADDR     – host:port, default localhost:6379
//   REDIS_PASSWORD – optional
//   REDIS_DB       – database number, default 0
func NewRedisClient() *redis.Client {
    client := redis.NewClient(&redis.Options{
        Addr:     envStr("REDIS_ADDR", "localhost:6379"),
        Password: envStr("REDIS_PASSWORD", ""),
        DB:       envInt("REDIS_DB", 0),
    })

    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        log.Printf("config: redis ping failed: %v", err)
        _ = client.Close()
        return nil
    }
    return client
}
