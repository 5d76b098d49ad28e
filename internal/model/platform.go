package model

import "fmt"

// Platform identifies a ticketing provider.  Humanitix and Eventbrite
// are external platforms that act as the authoritative source for
// ticket sale counts.  PlatformManual marks sales entered by hand
// (door sales, comps) which have no external source of truth and are
// therefore never reconciled against a connector.
type Platform string

const (
    PlatformHumanitix  Platform = "humanitix"
    PlatformEventbrite Platform = "eventbrite"
    PlatformManual     Platform = "manual"
)

// Reconcilable reports whether sales on this platform can be compared
// against an external source.  Manual sales cannot.
func (p Platform) Reconcilable() bool {
    return p == PlatformHumanitix || p == PlatformEventbrite
}

// ParsePlatform converts a raw string into a Platform, rejecting
// anything outside the known set.
func ParsePlatform(s string) (Platform, error) {
    switch Platform(s) {
    case PlatformHumanitix, PlatformEventbrite, PlatformManual:
        return Platform(s), nil
    }
    return "", fmt.Errorf("unknown platform %q", s)
}
