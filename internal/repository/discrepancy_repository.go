package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/standupsydney/ticket-reconciliation/internal/model"
)

// DiscrepancyRepo persists detected mismatches and their resolution
// lifecycle.  The discrepancies table carries a UNIQUE key over
// (event_id, platform, external_sale_id, dtype); Insert converts the
// resulting duplicate-key error into ErrDuplicateDiscrepancy so the
// engine can treat "already recorded" as a skip rather than a failure.
// That index is also what prevents two concurrent runs from double
// inserting the same condition.
type DiscrepancyRepo struct {
    db *sql.DB
}

// NewDiscrepancyRepo returns a new DiscrepancyRepo bound to the given database.
func NewDiscrepancyRepo(db *sql.DB) *DiscrepancyRepo { return &DiscrepancyRepo{db: db} }

const discrepancyColumns = `id, event_id, platform, external_sale_id, dtype, severity, expected_value, actual_value, amount_diff_cents, detected_at, resolution_state, resolution_notes, resolved_by, resolved_at`

// mysqlDuplicateEntry is the server error number for a unique key
// violation (ER_DUP_ENTRY).
const mysqlDuplicateEntry = 1062

func scanDiscrepancy(row interface{ Scan(...any) error }, d *model.Discrepancy) error {
    var notes, resolvedBy sql.NullString
    var resolvedAt sql.NullTime
    err := row.Scan(&d.ID, &d.EventID, &d.Platform, &d.ExternalSaleID,
        &d.Type, &d.Severity, &d.ExpectedValue, &d.ActualValue,
        &d.AmountDiffCents, &d.DetectedAt, &d.Resolution,
        &notes, &resolvedBy, &resolvedAt)
    if err != nil {
        return err
    }
    if notes.Valid {
        v := notes.String
        d.ResolutionNotes = &v
    }
    if resolvedBy.Valid {
        v := resolvedBy.String
        d.ResolvedBy = &v
    }
    if resolvedAt.Valid {
        v := resolvedAt.Time
        d.ResolvedAt = &v
    }
    return nil
}

// Insert stores a newly detected discrepancy in the unresolved state
// and populates the generated ID.  Returns ErrDuplicateDiscrepancy if
// a row for the same logical condition already exists, whatever its
// resolution state.
func (r *DiscrepancyRepo) Insert(ctx context.Context, d *model.Discrepancy) error {
    const q = `INSERT INTO discrepancies (event_id, platform, external_sale_id, dtype, severity, expected_value, actual_value, amount_diff_cents, detected_at, resolution_state) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    d.Resolution = model.ResolutionUnresolved
    if d.DetectedAt.IsZero() {
        d.DetectedAt = time.Now().UTC()
    }
    result, err := r.db.ExecContext(ctx, q, d.EventID, d.Platform, d.ExternalSaleID,
        d.Type, d.Severity, d.ExpectedValue, d.ActualValue, d.AmountDiffCents,
        d.DetectedAt, d.Resolution)
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
            return ErrDuplicateDiscrepancy
        }
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    d.ID = uint64(id)
    return nil
}

// GetByID fetches a single discrepancy or ErrDiscrepancyNotFound.
func (r *DiscrepancyRepo) GetByID(ctx context.Context, id uint64) (*model.Discrepancy, error) {
    const q = `SELECT ` + discrepancyColumns + ` FROM discrepancies WHERE id = ?`
    var d model.Discrepancy
    if err := scanDiscrepancy(r.db.QueryRowContext(ctx, q, id), &d); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrDiscrepancyNotFound
        }
        return nil, err
    }
    return &d, nil
}

// ListUnresolved returns the open discrepancies for an event ordered
// most urgent first: severity descending (critical, high, medium,
// low), then oldest detection first within each severity.
func (r *DiscrepancyRepo) ListUnresolved(ctx context.Context, eventID string) ([]model.Discrepancy, error) {
    const q = `SELECT ` + discrepancyColumns + ` FROM discrepancies
        WHERE event_id = ? AND resolution_state = ?
        ORDER BY FIELD(severity, 'critical', 'high', 'medium', 'low'), detected_at, id`
    rows, err := r.db.QueryContext(ctx, q, eventID, model.ResolutionUnresolved)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Discrepancy
    for rows.Next() {
        var d model.Discrepancy
        if err := scanDiscrepancy(rows, &d); err != nil {
            return nil, err
        }
        out = append(out, d)
    }
    return out, rows.Err()
}

// Resolve performs the one-way unresolved -> terminal transition.  The
// UPDATE is guarded on the current state so a concurrent or repeated
// resolution loses the race cleanly: zero affected rows means the
// discrepancy either does not exist (ErrDiscrepancyNotFound) or has
// already been resolved (ErrConflict).
func (r *DiscrepancyRepo) Resolve(ctx context.Context, id uint64, state model.ResolutionState, notes, resolvedBy string, at time.Time) (*model.Discrepancy, error) {
    const q = `UPDATE discrepancies SET resolution_state = ?, resolution_notes = ?, resolved_by = ?, resolved_at = ? WHERE id = ? AND resolution_state = ?`
    result, err := r.db.ExecContext(ctx, q, state, notes, resolvedBy, at, id, model.ResolutionUnresolved)
    if err != nil {
        return nil, err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return nil, err
    }
    if n == 0 {
        if _, err := r.GetByID(ctx, id); err != nil {
            return nil, err
        }
        return nil, ErrConflict
    }
    return r.GetByID(ctx, id)
}

// DiscrepancyStats aggregates the counts surfaced by the stats
// endpoint.  BySeverity counts unresolved discrepancies only.
type DiscrepancyStats struct {
    Total      int                    `json:"total"`
    Unresolved int                    `json:"unresolved"`
    BySeverity map[model.Severity]int `json:"by_severity"`
}

// StatsByEvent computes discrepancy totals for an event in a single
// pass over the table.
func (r *DiscrepancyRepo) StatsByEvent(ctx context.Context, eventID string) (*DiscrepancyStats, error) {
    const q = `SELECT severity, resolution_state, COUNT(*) FROM discrepancies WHERE event_id = ? GROUP BY severity, resolution_state`
    rows, err := r.db.QueryContext(ctx, q, eventID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    stats := &DiscrepancyStats{BySeverity: map[model.Severity]int{}}
    for rows.Next() {
        var sev model.Severity
        var state model.ResolutionState
        var count int
        if err := rows.Scan(&sev, &state, &count); err != nil {
            return nil, err
        }
        stats.Total += count
        if state == model.ResolutionUnresolved {
            stats.Unresolved += count
            stats.BySeverity[sev] += count
        }
    }
    return stats, rows.Err()
}
