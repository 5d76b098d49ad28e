package model

import "time"

// PlatformSale is one sale as reported by an external platform,
// normalized at the connector boundary so the reconciliation core
// never inspects platform-specific JSON shapes.
type PlatformSale struct {
    ExternalSaleID string
    Quantity       uint32
    AmountCents    int64
    Currency       string
    PurchasedAt    time.Time
}

// PlatformSaleSnapshot is a point-in-time fetch of authoritative sales
// data for one event on one platform.  Snapshots are transient: they
// are consumed by a single reconciliation pass and never persisted.
type PlatformSaleSnapshot struct {
    EventID   string
    Platform  Platform
    Sales     []PlatformSale
    FetchedAt time.Time
}
