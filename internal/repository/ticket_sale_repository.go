package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/standupsydney/ticket-reconciliation/internal/model"
)

// TicketSaleRepo provides read access to locally recorded ticket sales
// plus the transactional mutation helpers used when applying manual
// adjustments.  Reconciliation itself never mutates sales; the Tx
// methods exist solely for AdjustmentRepo, which owns the transaction
// boundary.  All timestamps are stored in UTC.
type TicketSaleRepo struct {
    db *sql.DB
}

// NewTicketSaleRepo returns a new TicketSaleRepo bound to the given database.
func NewTicketSaleRepo(db *sql.DB) *TicketSaleRepo { return &TicketSaleRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// that span this repository and others.
func (r *TicketSaleRepo) DB() *sql.DB { return r.db }

const saleColumns = `id, event_id, platform, external_sale_id, quantity, amount_cents, currency, purchased_at, created_at`

func scanSale(row interface{ Scan(...any) error }, s *model.TicketSale) error {
    return row.Scan(&s.ID, &s.EventID, &s.Platform, &s.ExternalSaleID,
        &s.Quantity, &s.AmountCents, &s.Currency, &s.PurchasedAt, &s.CreatedAt)
}

// ListByEventPlatform returns every recorded sale for one event on one
// platform, ordered by purchase time.
func (r *TicketSaleRepo) ListByEventPlatform(ctx context.Context, eventID string, platform model.Platform) ([]model.TicketSale, error) {
    const q = `SELECT ` + saleColumns + ` FROM ticket_sales WHERE event_id = ? AND platform = ? ORDER BY purchased_at, id`
    rows, err := r.db.QueryContext(ctx, q, eventID, platform)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var sales []model.TicketSale
    for rows.Next() {
        var s model.TicketSale
        if err := scanSale(rows, &s); err != nil {
            return nil, err
        }
        sales = append(sales, s)
    }
    return sales, rows.Err()
}

// PlatformsWithSales returns the distinct reconcilable platforms that
// have at least one recorded sale for the event.  Manual sales are
// excluded: they have no external source of truth to compare against.
func (r *TicketSaleRepo) PlatformsWithSales(ctx context.Context, eventID string) ([]model.Platform, error) {
    const q = `SELECT DISTINCT platform FROM ticket_sales WHERE event_id = ? AND platform <> ? ORDER BY platform`
    rows, err := r.db.QueryContext(ctx, q, eventID, model.PlatformManual)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var platforms []model.Platform
    for rows.Next() {
        var p model.Platform
        if err := rows.Scan(&p); err != nil {
            return nil, err
        }
        platforms = append(platforms, p)
    }
    return platforms, rows.Err()
}

// EventIDsWithSales returns every event id that has recorded sales on a
// reconcilable platform.  The scheduler uses this to build its sweep
// list each interval.
func (r *TicketSaleRepo) EventIDsWithSales(ctx context.Context) ([]string, error) {
    const q = `SELECT DISTINCT event_id FROM ticket_sales WHERE platform <> ? ORDER BY event_id`
    rows, err := r.db.QueryContext(ctx, q, model.PlatformManual)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []string
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    return ids, rows.Err()
}

// CreateTx inserts a new sale within the scope of an existing
// transaction and populates the generated ID.  The caller must commit
// or rollback.
func (r *TicketSaleRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.TicketSale) error {
    const q = `INSERT INTO ticket_sales (event_id, platform, external_sale_id, quantity, amount_cents, currency, purchased_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
    purchased := s.PurchasedAt
    if purchased.IsZero() {
        purchased = time.Now().UTC()
    }
    result, err := tx.ExecContext(ctx, q, s.EventID, s.Platform, s.ExternalSaleID, s.Quantity, s.AmountCents, s.Currency, purchased)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    s.ID = uint64(id)
    return nil
}

// DeleteByExternalIDTx removes the sale identified by (event, platform,
// external sale id) inside an existing transaction.  Returns
// ErrSaleNotFound when nothing matched.
func (r *TicketSaleRepo) DeleteByExternalIDTx(ctx context.Context, tx *sql.Tx, eventID string, platform model.Platform, externalSaleID string) error {
    const q = `DELETE FROM ticket_sales WHERE event_id = ? AND platform = ? AND external_sale_id = ?`
    result, err := tx.ExecContext(ctx, q, eventID, platform, externalSaleID)
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrSaleNotFound
    }
    return nil
}

// UpdateAmountTx changes the recorded amount of a sale inside an
// existing transaction.  Returns ErrSaleNotFound when nothing matched.
// A no-op update (same amount) still counts as found: MySQL reports
// zero affected rows for it, so existence is checked explicitly.
func (r *TicketSaleRepo) UpdateAmountTx(ctx context.Context, tx *sql.Tx, eventID string, platform model.Platform, externalSaleID string, amountCents int64) error {
    const check = `SELECT COUNT(*) FROM ticket_sales WHERE event_id = ? AND platform = ? AND external_sale_id = ?`
    var n int
    if err := tx.QueryRowContext(ctx, check, eventID, platform, externalSaleID).Scan(&n); err != nil {
        return err
    }
    if n == 0 {
        return ErrSaleNotFound
    }
    const q = `UPDATE ticket_sales SET amount_cents = ? WHERE event_id = ? AND platform = ? AND external_sale_id = ?`
    _, err := tx.ExecContext(ctx, q, amountCents, eventID, platform, externalSaleID)
    return err
}
