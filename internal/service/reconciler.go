// Package service contains the reconciliation engine: the comparison
// of locally recorded ticket sales against the authoritative platform
// data, discrepancy persistence and resolution, and operator-driven
// manual adjustments.  The engine is stateless between runs and holds
// no global handles; every dependency is injected at construction.
package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "strings"
    "sync"
    "time"

    "github.com/standupsydney/ticket-reconciliation/internal/model"
    "github.com/standupsydney/ticket-reconciliation/internal/platform"
    "github.com/standupsydney/ticket-reconciliation/internal/queue"
    "github.com/standupsydney/ticket-reconciliation/internal/repository"
)

// SaleStore is the read surface over locally recorded ticket sales.
type SaleStore interface {
    ListByEventPlatform(ctx context.Context, eventID string, p model.Platform) ([]model.TicketSale, error)
    PlatformsWithSales(ctx context.Context, eventID string) ([]model.Platform, error)
}

// DiscrepancyStore persists discrepancies and their resolution
// lifecycle.  Insert must return repository.ErrDuplicateDiscrepancy
// when the logical condition is already recorded, in any resolution
// state; that contract is what makes reconciliation idempotent.
type DiscrepancyStore interface {
    Insert(ctx context.Context, d *model.Discrepancy) error
    GetByID(ctx context.Context, id uint64) (*model.Discrepancy, error)
    ListUnresolved(ctx context.Context, eventID string) ([]model.Discrepancy, error)
    Resolve(ctx context.Context, id uint64, state model.ResolutionState, notes, resolvedBy string, at time.Time) (*model.Discrepancy, error)
    StatsByEvent(ctx context.Context, eventID string) (*repository.DiscrepancyStats, error)
}

// RunStore persists the reconciliation run audit trail.
type RunStore interface {
    Create(ctx context.Context, run *model.ReconciliationRun) error
    Finish(ctx context.Context, run *model.ReconciliationRun) error
    ListByEvent(ctx context.Context, eventID string, limit int) ([]model.ReconciliationRun, error)
    LastRun(ctx context.Context, eventID string) (*model.ReconciliationRun, error)
    HasActiveRun(ctx context.Context, eventID string) (bool, error)
}

// AdjustmentStore applies operator corrections atomically.
type AdjustmentStore interface {
    Apply(ctx context.Context, adj *model.ManualAdjustment) error
    ListByEvent(ctx context.Context, eventID string) ([]model.ManualAdjustment, error)
}

// EventPublisher pushes reconciliation outcomes onto the message
// broker.  Publishing is best-effort; the engine logs failures and
// moves on.
type EventPublisher interface {
    PublishRunCompleted(ctx context.Context, ev queue.RunCompletedEvent) error
    PublishCriticalDiscrepancy(ctx context.Context, ev queue.CriticalDiscrepancyEvent) error
}

// Policy carries the configurable reconciliation thresholds.  The
// dollar figures behind the defaults come from operator practice, not
// confirmed business requirements, which is exactly why they live in
// config rather than in the comparison code.
type Policy struct {
    // AmountToleranceCents is the largest absolute amount difference
    // still treated as rounding noise (no discrepancy).
    AmountToleranceCents int64
    // CriticalAmountCents is the absolute amount difference above
    // which an amount mismatch is classified critical.
    CriticalAmountCents int64
    // FetchTimeout bounds each platform connector call.
    FetchTimeout time.Duration
}

// DefaultPolicy returns the policy used when no configuration is
// supplied: 1 minor unit of rounding tolerance, $50 critical
// threshold, 30s fetch timeout.
func DefaultPolicy() Policy {
    return Policy{
        AmountToleranceCents: 1,
        CriticalAmountCents:  5000,
        FetchTimeout:         30 * time.Second,
    }
}

// TriggerSchedule is the TriggeredBy value recorded for runs started
// by the periodic scheduler rather than an operator.
const TriggerSchedule = "schedule"

// Reconciler is the reconciliation engine.  Safe for concurrent use;
// runs for the same event are serialized on an in-process keyed mutex
// in addition to the storage-level uniqueness guarantee.
type Reconciler struct {
    sales         SaleStore
    discrepancies DiscrepancyStore
    runs          RunStore
    adjustments   AdjustmentStore
    connector     platform.Connector
    publisher     EventPublisher
    policy        Policy

    mu         sync.Mutex
    eventLocks map[string]*sync.Mutex
}

// NewReconciler wires the engine.  publisher may be nil when no broker
// is configured.
func NewReconciler(sales SaleStore, discrepancies DiscrepancyStore, runs RunStore, adjustments AdjustmentStore, connector platform.Connector, publisher EventPublisher, policy Policy) *Reconciler {
    if policy.AmountToleranceCents < 0 {
        policy.AmountToleranceCents = 0
    }
    if policy.CriticalAmountCents <= 0 {
        policy.CriticalAmountCents = DefaultPolicy().CriticalAmountCents
    }
    if policy.FetchTimeout <= 0 {
        policy.FetchTimeout = DefaultPolicy().FetchTimeout
    }
    return &Reconciler{
        sales:         sales,
        discrepancies: discrepancies,
        runs:          runs,
        adjustments:   adjustments,
        connector:     connector,
        publisher:     publisher,
        policy:        policy,
        eventLocks:    make(map[string]*sync.Mutex),
    }
}

func (r *Reconciler) lockEvent(eventID string) *sync.Mutex {
    r.mu.Lock()
    defer r.mu.Unlock()
    m, ok := r.eventLocks[eventID]
    if !ok {
        m = &sync.Mutex{}
        r.eventLocks[eventID] = m
    }
    return m
}

// RunResult is what one ReconcileEvent invocation produced: the run
// record plus the discrepancies newly created by it.
type RunResult struct {
    Run     *model.ReconciliationRun `json:"run"`
    Created []model.Discrepancy      `json:"created_discrepancies"`
}

// ReconcileEvent compares local sales for the event against each
// in-scope platform and persists any newly detected discrepancies.
// With a nil platform every reconcilable platform holding recorded
// sales is covered.  A connector failure on one platform does not stop
// the others; the run then finishes failed with the joined errors
// while the successful platforms' discrepancies are kept.  Running
// twice with unchanged data creates nothing on the second pass.
func (r *Reconciler) ReconcileEvent(ctx context.Context, eventID string, p *model.Platform, triggeredBy string) (*RunResult, error) {
    if eventID == "" {
        return nil, fmt.Errorf("%w: event id is required", repository.ErrValidation)
    }
    if p != nil && !p.Reconcilable() {
        return nil, fmt.Errorf("%w: platform %q has no external source of truth", repository.ErrValidation, *p)
    }
    if triggeredBy == "" {
        triggeredBy = TriggerSchedule
    }

    lock := r.lockEvent(eventID)
    lock.Lock()
    defer lock.Unlock()

    platforms, err := r.scopePlatforms(ctx, eventID, p)
    if err != nil {
        return nil, err
    }

    run := &model.ReconciliationRun{EventID: eventID, Platform: p, TriggeredBy: triggeredBy}
    if err := r.runs.Create(ctx, run); err != nil {
        return nil, err
    }

    var (
        created   []model.Discrepancy
        fetchErrs []error
    )
    for _, pf := range platforms {
        res, err := r.reconcilePlatform(ctx, eventID, pf)
        if err != nil {
            fetchErrs = append(fetchErrs, fmt.Errorf("%s: %w", pf, err))
            continue
        }
        created = append(created, res.created...)
        run.TotalLocalSales += res.localSales
        run.TotalPlatformSales += res.platformSales
        run.TotalLocalCents += res.localCents
        run.TotalPlatformCents += res.platformCents
    }

    run.DiscrepanciesFound = len(created)
    run.SyncHealth = healthFor(created)
    var runErr error
    if len(fetchErrs) > 0 {
        run.Status = model.RunFailed
        runErr = joinErrors(fetchErrs)
        msg := runErr.Error()
        run.ErrorMessage = &msg
    } else {
        run.Status = model.RunCompleted
    }
    if err := r.runs.Finish(ctx, run); err != nil {
        return nil, err
    }

    r.publish(ctx, run, created)

    return &RunResult{Run: run, Created: created}, runErr
}

// scopePlatforms resolves which platforms one run covers.
func (r *Reconciler) scopePlatforms(ctx context.Context, eventID string, p *model.Platform) ([]model.Platform, error) {
    if p != nil {
        return []model.Platform{*p}, nil
    }
    platforms, err := r.sales.PlatformsWithSales(ctx, eventID)
    if err != nil {
        return nil, err
    }
    return platforms, nil
}

type platformResult struct {
    created       []model.Discrepancy
    localSales    int
    platformSales int
    localCents    int64
    platformCents int64
}

func (r *Reconciler) reconcilePlatform(ctx context.Context, eventID string, p model.Platform) (*platformResult, error) {
    fetchCtx, cancel := context.WithTimeout(ctx, r.policy.FetchTimeout)
    defer cancel()
    snapshot, err := r.connector.FetchSales(fetchCtx, eventID, p)
    if err != nil {
        return nil, err
    }

    local, err := r.sales.ListByEventPlatform(ctx, eventID, p)
    if err != nil {
        return nil, err
    }

    res := &platformResult{localSales: len(local), platformSales: len(snapshot.Sales)}
    for _, s := range local {
        res.localCents += s.AmountCents
    }
    for _, s := range snapshot.Sales {
        res.platformCents += s.AmountCents
    }

    now := time.Now().UTC()
    for _, cand := range r.diff(eventID, p, local, snapshot.Sales) {
        d := cand
        d.DetectedAt = now
        err := r.discrepancies.Insert(ctx, &d)
        if errors.Is(err, repository.ErrDuplicateDiscrepancy) {
            // Already recorded for this logical condition, possibly by
            // an earlier run or a concurrent one. Skip.
            continue
        }
        if err != nil {
            return nil, err
        }
        res.created = append(res.created, d)
    }
    return res, nil
}

// diff computes candidate discrepancies between local and platform
// sales for one event+platform pair.  Both sides are keyed by the
// external sale id the platform assigned.
func (r *Reconciler) diff(eventID string, p model.Platform, local []model.TicketSale, remote []model.PlatformSale) []model.Discrepancy {
    localByID := make(map[string]model.TicketSale, len(local))
    for _, s := range local {
        localByID[s.ExternalSaleID] = s
    }
    remoteByID := make(map[string]model.PlatformSale, len(remote))
    for _, s := range remote {
        remoteByID[s.ExternalSaleID] = s
    }

    var out []model.Discrepancy
    add := func(saleID string, t model.DiscrepancyType, sev model.Severity, expected, actual string, diffCents int64) {
        out = append(out, model.Discrepancy{
            EventID:         eventID,
            Platform:        p,
            ExternalSaleID:  saleID,
            Type:            t,
            Severity:        sev,
            ExpectedValue:   expected,
            ActualValue:     actual,
            AmountDiffCents: diffCents,
        })
    }

    // Platform sales the local store never recorded. Missing sales are
    // always critical regardless of amount.
    for _, rs := range remote {
        if _, ok := localByID[rs.ExternalSaleID]; !ok {
            add(rs.ExternalSaleID, model.DiscrepancyMissingLocally, model.SeverityCritical,
                formatSale(rs.Quantity, rs.AmountCents, rs.Currency), "absent", rs.AmountCents)
        }
    }

    // Local sales the platform does not report.
    for _, ls := range local {
        if _, ok := remoteByID[ls.ExternalSaleID]; !ok {
            add(ls.ExternalSaleID, model.DiscrepancyMissingOnPlatform, model.SeverityCritical,
                "absent", formatSale(ls.Quantity, ls.AmountCents, ls.Currency), ls.AmountCents)
        }
    }

    // Sales present on both sides.
    for _, ls := range local {
        rs, ok := remoteByID[ls.ExternalSaleID]
        if !ok {
            continue
        }
        if rs.Quantity != ls.Quantity {
            add(ls.ExternalSaleID, model.DiscrepancyQuantityMismatch, model.SeverityHigh,
                fmt.Sprintf("qty %d", rs.Quantity), fmt.Sprintf("qty %d", ls.Quantity), 0)
        }
        diff := rs.AmountCents - ls.AmountCents
        if diff < 0 {
            diff = -diff
        }
        switch {
        case diff > r.policy.AmountToleranceCents:
            sev := model.SeverityMedium
            if diff > r.policy.CriticalAmountCents {
                sev = model.SeverityCritical
            }
            add(ls.ExternalSaleID, model.DiscrepancyAmountMismatch, sev,
                formatAmount(rs.AmountCents, rs.Currency), formatAmount(ls.AmountCents, ls.Currency), diff)
        case rs.Currency != "" && ls.Currency != "" && rs.Currency != ls.Currency:
            // Amounts agree but the currency codes drifted. Purely
            // informational; flagged so the ingestion pipeline can be
            // fixed.
            add(ls.ExternalSaleID, model.DiscrepancyAmountMismatch, model.SeverityLow,
                formatAmount(rs.AmountCents, rs.Currency), formatAmount(ls.AmountCents, ls.Currency), 0)
        }
    }
    return out
}

func healthFor(created []model.Discrepancy) model.SyncHealth {
    health := model.HealthHealthy
    for _, d := range created {
        if d.Severity == model.SeverityCritical {
            return model.HealthCritical
        }
        health = model.HealthWarning
    }
    return health
}

func (r *Reconciler) publish(ctx context.Context, run *model.ReconciliationRun, created []model.Discrepancy) {
    if r.publisher == nil {
        return
    }
    ev := queue.RunCompletedEvent{
        RunID:              run.ID,
        EventID:            run.EventID,
        TriggeredBy:        run.TriggeredBy,
        Status:             string(run.Status),
        SyncHealth:         string(run.SyncHealth),
        DiscrepanciesFound: run.DiscrepanciesFound,
        CompletedAt:        time.Now().UTC().Format(time.RFC3339),
    }
    if run.Platform != nil {
        ev.Platform = string(*run.Platform)
    }
    if err := r.publisher.PublishRunCompleted(ctx, ev); err != nil {
        log.Printf("reconciler: publish run completed failed: %v", err)
    }
    for _, d := range created {
        if d.Severity != model.SeverityCritical {
            continue
        }
        cev := queue.CriticalDiscrepancyEvent{
            DiscrepancyID:  d.ID,
            EventID:        d.EventID,
            Platform:       string(d.Platform),
            ExternalSaleID: d.ExternalSaleID,
            Type:           string(d.Type),
            ExpectedValue:  d.ExpectedValue,
            ActualValue:    d.ActualValue,
            DetectedAt:     d.DetectedAt.Format(time.RFC3339),
        }
        if err := r.publisher.PublishCriticalDiscrepancy(ctx, cev); err != nil {
            log.Printf("reconciler: publish critical discrepancy failed: %v", err)
        }
    }
}

// Stats is the aggregate view surfaced to the dashboard.
type Stats struct {
    Total          int                    `json:"total_discrepancies"`
    Unresolved     int                    `json:"unresolved"`
    BySeverity     map[model.Severity]int `json:"by_severity"`
    LastRunAt      *time.Time             `json:"last_run_at,omitempty"`
    LastRunStatus  model.RunStatus        `json:"last_run_status,omitempty"`
    LastSyncHealth model.SyncHealth       `json:"last_sync_health,omitempty"`
}

// Stats returns discrepancy totals and the most recent run summary for
// an event.  Pure read.
func (r *Reconciler) Stats(ctx context.Context, eventID string) (*Stats, error) {
    ds, err := r.discrepancies.StatsByEvent(ctx, eventID)
    if err != nil {
        return nil, err
    }
    stats := &Stats{Total: ds.Total, Unresolved: ds.Unresolved, BySeverity: ds.BySeverity}
    last, err := r.runs.LastRun(ctx, eventID)
    if err != nil {
        return nil, err
    }
    if last != nil {
        stats.LastRunAt = &last.StartedAt
        stats.LastRunStatus = last.Status
        stats.LastSyncHealth = last.SyncHealth
    }
    return stats, nil
}

// UnresolvedDiscrepancies lists the open discrepancies for an event,
// most urgent first (severity desc, then oldest detection).
func (r *Reconciler) UnresolvedDiscrepancies(ctx context.Context, eventID string) ([]model.Discrepancy, error) {
    return r.discrepancies.ListUnresolved(ctx, eventID)
}

// History returns past runs for an event, newest first.  limit <= 0
// selects the default of 50.
func (r *Reconciler) History(ctx context.Context, eventID string, limit int) ([]model.ReconciliationRun, error) {
    if limit <= 0 {
        limit = 50
    }
    return r.runs.ListByEvent(ctx, eventID, limit)
}

// ResolveDiscrepancy performs the one-way transition out of the
// unresolved state.  Notes are mandatory; the resolution must be one
// of the terminal states.  Resolving an already-resolved discrepancy
// fails with repository.ErrConflict.
func (r *Reconciler) ResolveDiscrepancy(ctx context.Context, id uint64, resolution, notes, resolvedBy string) (*model.Discrepancy, error) {
    state, ok := model.ParseResolution(resolution)
    if !ok {
        return nil, fmt.Errorf("%w: unknown resolution %q", repository.ErrValidation, resolution)
    }
    if strings.TrimSpace(notes) == "" {
        return nil, fmt.Errorf("%w: resolution notes are required", repository.ErrValidation)
    }
    if resolvedBy == "" {
        return nil, fmt.Errorf("%w: resolver identity is required", repository.ErrValidation)
    }
    return r.discrepancies.Resolve(ctx, id, state, notes, resolvedBy, time.Now().UTC())
}

// CreateAdjustment validates and applies an operator correction to
// local sales data.  This is the only path that mutates ticket sales
// outside the sync ingestion pipeline; the store guarantees the
// adjustment record and the sale mutation land atomically.
func (r *Reconciler) CreateAdjustment(ctx context.Context, adj *model.ManualAdjustment) (*model.ManualAdjustment, error) {
    if err := validateAdjustment(adj); err != nil {
        return nil, err
    }
    if err := r.adjustments.Apply(ctx, adj); err != nil {
        return nil, err
    }
    return adj, nil
}

// Adjustments returns the adjustment history for an event.
func (r *Reconciler) Adjustments(ctx context.Context, eventID string) ([]model.ManualAdjustment, error) {
    return r.adjustments.ListByEvent(ctx, eventID)
}

func validateAdjustment(adj *model.ManualAdjustment) error {
    if adj.EventID == "" {
        return fmt.Errorf("%w: event id is required", repository.ErrValidation)
    }
    if _, err := model.ParsePlatform(string(adj.Platform)); err != nil {
        return fmt.Errorf("%w: %v", repository.ErrValidation, err)
    }
    if strings.TrimSpace(adj.Reason) == "" {
        return fmt.Errorf("%w: adjustment reason is required", repository.ErrValidation)
    }
    if adj.CreatedBy == "" {
        return fmt.Errorf("%w: creator identity is required", repository.ErrValidation)
    }
    if adj.Payload.ExternalSaleID == "" {
        return fmt.Errorf("%w: payload external sale id is required", repository.ErrValidation)
    }
    switch adj.Type {
    case model.AdjustmentAddSale:
        if adj.Payload.Quantity == 0 {
            return fmt.Errorf("%w: add_sale requires a positive quantity", repository.ErrValidation)
        }
        if adj.Payload.AmountCents < 0 {
            return fmt.Errorf("%w: add_sale amount must not be negative", repository.ErrValidation)
        }
        if adj.Payload.Currency == "" {
            return fmt.Errorf("%w: add_sale requires a currency", repository.ErrValidation)
        }
    case model.AdjustmentRemoveSale:
        // External sale id alone identifies the target.
    case model.AdjustmentUpdateAmount:
        if adj.Payload.AmountCents < 0 {
            return fmt.Errorf("%w: update_amount amount must not be negative", repository.ErrValidation)
        }
    default:
        return fmt.Errorf("%w: unknown adjustment type %q", repository.ErrValidation, adj.Type)
    }
    return nil
}

func formatAmount(cents int64, currency string) string {
    sign := ""
    if cents < 0 {
        sign = "-"
        cents = -cents
    }
    if currency == "" {
        return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
    }
    return fmt.Sprintf("%s %s%d.%02d", currency, sign, cents/100, cents%100)
}

func formatSale(qty uint32, cents int64, currency string) string {
    return fmt.Sprintf("qty %d, %s", qty, formatAmount(cents, currency))
}

func joinErrors(errs []error) error {
    if len(errs) == 1 {
        return errs[0]
    }
    parts := make([]string, len(errs))
    for i, e := range errs {
        parts[i] = e.Error()
    }
    // Wrap the first error so errors.Is keeps working for retryable
    // classification even when several platforms failed.
    return fmt.Errorf("%w (and %d more: %s)", errs[0], len(errs)-1, strings.Join(parts[1:], "; "))
}
