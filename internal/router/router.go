package router // route registration for the reconciliation API

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/standupsydney/ticket-reconciliation/internal/config"
    "github.com/standupsydney/ticket-reconciliation/internal/handler"
    "github.com/standupsydney/ticket-reconciliation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check
// for load balancers and monitoring.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterReconciliation wires the reconciliation endpoints under /v1.
// Every route requires a valid bearer token; mutating routes are
// further restricted to operators and admins.  The manual reconcile
// trigger sits behind the Redis token bucket so a stuck dashboard
// cannot hammer the platform APIs, and stats reads are served from the
// response cache when Redis is available (rdb may be nil — both
// middlewares degrade to pass-through).
func RegisterReconciliation(e *echo.Echo, h *handler.ReconciliationHandler, jwtSecret string, rdb *redis.Client) {
    g := e.Group("/v1")
    g.Use(middleware.JWTAuth(jwtSecret))

    operator := middleware.RequireRole("operator", "admin")
    limited := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
    cached := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

    g.POST("/events/:id/reconcile", h.Reconcile, operator, limited)
    g.GET("/events/:id/reconciliation/stats", h.Stats, cached)
    g.GET("/events/:id/reconciliation/runs", h.History)
    g.GET("/events/:id/discrepancies", h.Discrepancies)
    g.POST("/discrepancies/:id/resolve", h.Resolve, operator)
    g.POST("/events/:id/adjustments", h.CreateAdjustment, operator)
    g.GET("/events/:id/adjustments", h.ListAdjustments)
}
