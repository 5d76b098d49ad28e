package config

import (
    "os"
    "strconv"
    "time"
)

// RateLimitConfig bounds how often a single operator can trigger manual
// reconciliation.  Every run fans out to the ticketing platforms'
// APIs, so the cap is really protecting their quotas: a dashboard
// stuck in a retry loop must not burn through the Humanitix or
// Eventbrite allowance.  The bucket is per operator and refills
// continuously.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int           // burst size
    RefillTokens   int           // tokens added per interval
    RefillInterval time.Duration // refill cadence
    TTL            time.Duration // idle bucket expiry in Redis
}

// LoadRateLimitConfig reads the rate limit knobs from the environment.
// The defaults allow a burst of 5 manual runs and one more every 30
// seconds after that.
func LoadRateLimitConfig() RateLimitConfig {
    return RateLimitConfig{
        Enabled:        envBool("RECON_RATELIMIT_ENABLED", true),
        Capacity:       envInt("RECON_RATELIMIT_CAPACITY", 5),
        RefillTokens:   envInt("RECON_RATELIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RECON_RATELIMIT_REFILL_INTERVAL", 30*time.Second),
        TTL:            envDur("RECON_RATELIMIT_TTL", 10*time.Minute),
    }
}

func envStr(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func envBool(key string, def bool) bool {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    b, err := strconv.ParseBool(v)
    if err != nil {
        return def
    }
    return b
}

func envInt(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        return def
    }
    return n
}

func envDur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    d, err := time.ParseDuration(v)
    if err != nil {
        return def
    }
    return d
}
