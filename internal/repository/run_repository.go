package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/standupsydney/ticket-reconciliation/internal/model"
)

// RunRepo persists reconciliation runs.  Runs are an append-mostly
// audit trail: one insert at invocation start, one update on
// completion or failure, never a delete.
type RunRepo struct {
    db *sql.DB
}

// NewRunRepo returns a new RunRepo bound to the given database.
func NewRunRepo(db *sql.DB) *RunRepo { return &RunRepo{db: db} }

const runColumns = `id, event_id, platform, triggered_by, status, discrepancies_found, total_local_sales, total_platform_sales, total_local_cents, total_platform_cents, sync_health, error_message, started_at, completed_at`

func scanRun(row interface{ Scan(...any) error }, run *model.ReconciliationRun) error {
    var platform, health, errMsg sql.NullString
    var completedAt sql.NullTime
    err := row.Scan(&run.ID, &run.EventID, &platform, &run.TriggeredBy,
        &run.Status, &run.DiscrepanciesFound, &run.TotalLocalSales,
        &run.TotalPlatformSales, &run.TotalLocalCents, &run.TotalPlatformCents,
        &health, &errMsg, &run.StartedAt, &completedAt)
    if err != nil {
        return err
    }
    if platform.Valid {
        p := model.Platform(platform.String)
        run.Platform = &p
    }
    if health.Valid {
        run.SyncHealth = model.SyncHealth(health.String)
    }
    if errMsg.Valid {
        v := errMsg.String
        run.ErrorMessage = &v
    }
    if completedAt.Valid {
        v := completedAt.Time
        run.CompletedAt = &v
    }
    return nil
}

// Create inserts a run in the running state and populates the
// generated ID and start timestamp.
func (r *RunRepo) Create(ctx context.Context, run *model.ReconciliationRun) error {
    const q = `INSERT INTO reconciliation_runs (event_id, platform, triggered_by, status, started_at) VALUES (?, ?, ?, ?, ?)`
    run.Status = model.RunRunning
    if run.StartedAt.IsZero() {
        run.StartedAt = time.Now().UTC()
    }
    var platform any
    if run.Platform != nil {
        platform = string(*run.Platform)
    }
    result, err := r.db.ExecContext(ctx, q, run.EventID, platform, run.TriggeredBy, run.Status, run.StartedAt)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    run.ID = uint64(id)
    return nil
}

// Finish writes the terminal state of a run: status, counters, sync
// health and error message, plus the completion timestamp.  The run
// struct is expected to carry its final values already.
func (r *RunRepo) Finish(ctx context.Context, run *model.ReconciliationRun) error {
    const q = `UPDATE reconciliation_runs SET status = ?, discrepancies_found = ?, total_local_sales = ?, total_platform_sales = ?, total_local_cents = ?, total_platform_cents = ?, sync_health = ?, error_message = ?, completed_at = ? WHERE id = ?`
    now := time.Now().UTC()
    run.CompletedAt = &now
    var health any
    if run.SyncHealth != "" {
        health = string(run.SyncHealth)
    }
    var errMsg any
    if run.ErrorMessage != nil {
        errMsg = *run.ErrorMessage
    }
    result, err := r.db.ExecContext(ctx, q, run.Status, run.DiscrepanciesFound,
        run.TotalLocalSales, run.TotalPlatformSales, run.TotalLocalCents,
        run.TotalPlatformCents, health, errMsg, now, run.ID)
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        // Guard against finishing a run that was never created; the
        // row may legitimately be unchanged otherwise.
        var exists int
        if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reconciliation_runs WHERE id = ?`, run.ID).Scan(&exists); err != nil {
            return err
        }
        if exists == 0 {
            return ErrRunNotFound
        }
    }
    return nil
}

// ListByEvent returns runs for an event, newest first, capped at limit.
func (r *RunRepo) ListByEvent(ctx context.Context, eventID string, limit int) ([]model.ReconciliationRun, error) {
    const q = `SELECT ` + runColumns + ` FROM reconciliation_runs WHERE event_id = ? ORDER BY started_at DESC, id DESC LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q, eventID, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var runs []model.ReconciliationRun
    for rows.Next() {
        var run model.ReconciliationRun
        if err := scanRun(rows, &run); err != nil {
            return nil, err
        }
        runs = append(runs, run)
    }
    return runs, rows.Err()
}

// LastRun returns the most recent run for an event, or nil when the
// event has never been reconciled.
func (r *RunRepo) LastRun(ctx context.Context, eventID string) (*model.ReconciliationRun, error) {
    const q = `SELECT ` + runColumns + ` FROM reconciliation_runs WHERE event_id = ? ORDER BY started_at DESC, id DESC LIMIT 1`
    var run model.ReconciliationRun
    if err := scanRun(r.db.QueryRowContext(ctx, q, eventID), &run); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, nil
        }
        return nil, err
    }
    return &run, nil
}

// HasActiveRun reports whether a run for the event is still in the
// running state.  The scheduler checks this before dispatching so two
// reconciliations for the same event never execute concurrently.
func (r *RunRepo) HasActiveRun(ctx context.Context, eventID string) (bool, error) {
    const q = `SELECT COUNT(*) FROM reconciliation_runs WHERE event_id = ? AND status = ?`
    var n int
    if err := r.db.QueryRowContext(ctx, q, eventID, model.RunRunning).Scan(&n); err != nil {
        return false, err
    }
    return n > 0, nil
}
