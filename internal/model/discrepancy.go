package model

import "time"

// DiscrepancyType classifies what kind of mismatch was detected
// between local records and the platform snapshot.
type DiscrepancyType string

const (
    DiscrepancyMissingLocally    DiscrepancyType = "missing_locally"
    DiscrepancyMissingOnPlatform DiscrepancyType = "missing_on_platform"
    DiscrepancyAmountMismatch    DiscrepancyType = "amount_mismatch"
    DiscrepancyQuantityMismatch  DiscrepancyType = "quantity_mismatch"
)

// Severity is a four-level urgency classification attached to each
// discrepancy.  Ordering matters for operator display: critical first.
type Severity string

const (
    SeverityLow      Severity = "low"
    SeverityMedium   Severity = "medium"
    SeverityHigh     Severity = "high"
    SeverityCritical Severity = "critical"
)

// Rank maps a severity to a sortable weight; higher is more urgent.
// Unknown severities sort last.
func (s Severity) Rank() int {
    switch s {
    case SeverityCritical:
        return 4
    case SeverityHigh:
        return 3
    case SeverityMedium:
        return 2
    case SeverityLow:
        return 1
    }
    return 0
}

// ResolutionState tracks the lifecycle of a discrepancy.  The only
// permitted transition is unresolved -> one of the terminal states;
// terminal states never change again.
type ResolutionState string

const (
    ResolutionUnresolved      ResolutionState = "unresolved"
    ResolutionIgnored         ResolutionState = "ignored"
    ResolutionPlatformUpdated ResolutionState = "platform_updated"
    ResolutionManualReview    ResolutionState = "manual_review"
)

// Terminal reports whether the state is a final resolution.
func (r ResolutionState) Terminal() bool {
    return r == ResolutionIgnored || r == ResolutionPlatformUpdated || r == ResolutionManualReview
}

// ParseResolution converts a raw string into a terminal ResolutionState.
// "unresolved" is not accepted: callers resolve discrepancies, they
// never un-resolve them.
func ParseResolution(s string) (ResolutionState, bool) {
    r := ResolutionState(s)
    if r.Terminal() {
        return r, true
    }
    return "", false
}

// Discrepancy is a detected, persisted mismatch between locally
// recorded and platform-reported sales data for one event+platform
// pair.  Immutable once created except for the resolution fields.
//
// Fields:
//  ID              – primary key identifier.
//  EventID         – event the mismatch belongs to.
//  Platform        – platform side of the comparison.
//  ExternalSaleID  – sale the mismatch concerns.
//  Type            – what kind of mismatch was found.
//  Severity        – urgency classification.
//  ExpectedValue   – platform-side value, human readable.
//  ActualValue     – local-side value, human readable.
//  AmountDiffCents – absolute amount difference, for auditing the
//                    severity decision.  Zero for non-amount types.
//  DetectedAt      – when the reconciliation run found it.
//  Resolution      – resolution state (see ResolutionState).
//  ResolutionNotes – operator notes, set on resolution.
//  ResolvedBy      – identity of the resolving operator.
//  ResolvedAt      – resolution timestamp.
type Discrepancy struct {
    ID              uint64          // discrepancies.id
    EventID         string          // discrepancies.event_id
    Platform        Platform        // discrepancies.platform
    ExternalSaleID  string          // discrepancies.external_sale_id
    Type            DiscrepancyType // discrepancies.dtype
    Severity        Severity        // discrepancies.severity
    ExpectedValue   string          // discrepancies.expected_value
    ActualValue     string          // discrepancies.actual_value
    AmountDiffCents int64           // discrepancies.amount_diff_cents
    DetectedAt      time.Time       // discrepancies.detected_at
    Resolution      ResolutionState // discrepancies.resolution_state
    ResolutionNotes *string         // discrepancies.resolution_notes (nullable)
    ResolvedBy      *string         // discrepancies.resolved_by (nullable)
    ResolvedAt      *time.Time      // discrepancies.resolved_at (nullable)
}
