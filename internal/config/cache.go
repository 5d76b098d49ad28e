package config

import "time"

// CacheConfig controls the Redis response cache in front of the
// reconciliation stats endpoint.  Dashboards poll stats aggressively
// while the underlying counts only move when a run finishes, so even a
// short TTL absorbs most of the read load.  Keep it short: freshly
// detected discrepancies should surface within seconds.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    Prefix       string // Redis key namespace
    MaxBodyBytes int    // responses larger than this are not cached
}

// LoadCacheConfig reads the cache knobs from the environment.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("RECON_CACHE_ENABLED", true),
        TTL:          envDur("RECON_CACHE_TTL", 15*time.Second),
        Prefix:       envStr("RECON_CACHE_PREFIX", "recon:stats"),
        MaxBodyBytes: envInt("RECON_CACHE_MAX_BODY_BYTES", 1<<20),
    }
}
