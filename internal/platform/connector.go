// Package platform contains the connectors that fetch authoritative
// sales data from external ticketing providers.  Each connector
// normalizes its provider's JSON into model.PlatformSaleSnapshot at
// this boundary, so the reconciliation core never branches on
// platform-specific shapes.  Connector failures are reported through a
// small typed error set that lets callers separate retryable
// conditions (platform down, rate limited) from configuration problems
// (bad credentials).
package platform

import (
    "context"
    "errors"
    "fmt"

    "github.com/standupsydney/ticket-reconciliation/internal/model"
)

// ErrPlatformUnavailable indicates the provider could not be reached
// or answered with a server-side failure.  Retryable at the next
// scheduled interval.
var ErrPlatformUnavailable = errors.New("platform unavailable")

// ErrAuth indicates the provider rejected our credentials.  Not
// retryable without operator intervention.
var ErrAuth = errors.New("platform authentication failed")

// ErrRateLimited indicates the provider throttled the request.
var ErrRateLimited = errors.New("platform rate limited")

// Retryable reports whether the error is a transient platform
// condition that a later run may not hit.
func Retryable(err error) bool {
    return errors.Is(err, ErrPlatformUnavailable) ||
        errors.Is(err, ErrRateLimited) ||
        errors.Is(err, context.DeadlineExceeded)
}

// Connector fetches a point-in-time snapshot of sales for one event on
// one platform.  Implementations must honor ctx cancellation and
// deadlines; the reconciliation engine bounds every fetch with its
// configured timeout.
type Connector interface {
    FetchSales(ctx context.Context, eventID string, p model.Platform) (*model.PlatformSaleSnapshot, error)
}

// Registry dispatches fetches to the connector registered for each
// platform.  It satisfies Connector itself so the engine only ever
// holds a single handle.
type Registry struct {
    connectors map[model.Platform]Connector
}

// NewRegistry builds a registry from the given platform/connector pairs.
func NewRegistry() *Registry {
    return &Registry{connectors: make(map[model.Platform]Connector)}
}

// Register binds a connector to a platform, replacing any previous one.
func (r *Registry) Register(p model.Platform, c Connector) {
    r.connectors[p] = c
}

// FetchSales routes to the registered connector for p.
func (r *Registry) FetchSales(ctx context.Context, eventID string, p model.Platform) (*model.PlatformSaleSnapshot, error) {
    c, ok := r.connectors[p]
    if !ok {
        return nil, fmt.Errorf("no connector registered for platform %q", p)
    }
    return c.FetchSales(ctx, eventID, p)
}
