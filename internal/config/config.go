// Package config loads application configuration from environment
// variables.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message; optional
// knobs fall back to documented defaults.
package config

import (
    "log"
    "os"
    "strconv"
    "time"
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  The types reflect how the
// values are used: strings for identifiers and secrets, int64 cents
// for monetary thresholds, durations for timeouts and intervals.
type Config struct {
    Env       string // application environment (e.g. "dev", "prod")
    Port      string // HTTP port to listen on
    DBUser    string // database username
    DBPass    string // database password (optional)
    DBHost    string // database host address
    DBPort    string // database port number
    DBName    string // database name
    JWTSecret string // secret used to verify JWTs issued by the auth service

    HumanitixAPIKey  string // Humanitix API key (x-api-key header)
    HumanitixBaseURL string // override for tests; empty selects production
    EventbriteToken  string // Eventbrite OAuth token
    EventbriteURL    string // override for tests; empty selects production

    AmountToleranceCents int64         // amount diff treated as rounding noise
    CriticalAmountCents  int64         // amount diff above which a mismatch is critical
    FetchTimeout         time.Duration // per-platform connector timeout
    ScheduleInterval     time.Duration // periodic reconciliation interval
    ScheduleEnabled      bool          // disable to run reconciliation on demand only
}

// Load reads configuration values from environment variables and
// returns a Config.
func Load() Config {
    return Config{
        Env:       must("APP_ENV"),
        Port:      must("APP_PORT"),
        DBUser:    must("DB_USER"),
        DBPass:    os.Getenv("DB_PASS"), // empty allowed
        DBHost:    must("DB_HOST"),
        DBPort:    must("DB_PORT"),
        DBName:    must("DB_NAME"),
        JWTSecret: must("JWT_SECRET"),

        HumanitixAPIKey:  os.Getenv("HUMANITIX_API_KEY"),
        HumanitixBaseURL: os.Getenv("HUMANITIX_BASE_URL"),
        EventbriteToken:  os.Getenv("EVENTBRITE_TOKEN"),
        EventbriteURL:    os.Getenv("EVENTBRITE_BASE_URL"),

        AmountToleranceCents: envCents("RECON_AMOUNT_TOLERANCE_CENTS", 1),
        CriticalAmountCents:  envCents("RECON_CRITICAL_AMOUNT_CENTS", 5000),
        FetchTimeout:         envDur("RECON_FETCH_TIMEOUT", 30*time.Second),
        ScheduleInterval:     envDur("RECON_INTERVAL", time.Hour),
        ScheduleEnabled:      envBool("RECON_SCHEDULE_ENABLED", true),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// envCents parses an int64 minor-unit amount with a default; negative
// or malformed values fall back to the default with a warning.
func envCents(key string, def int64) int64 {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.ParseInt(v, 10, 64)
    if err != nil || n < 0 {
        log.Printf("config: invalid value for %s: %q, using %d", key, v, def)
        return def
    }
    return n
}
