package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "fmt"
    "time"

    "github.com/standupsydney/ticket-reconciliation/internal/model"
)

// AdjustmentRepo persists operator corrections to local sales data.
// Apply is the single write path: the manual_adjustments row and the
// corresponding ticket_sales mutation are committed in one
// transaction, so a failed mutation leaves no adjustment record behind
// and a concurrently running reconciliation never observes a partial
// application.
type AdjustmentRepo struct {
    db    *sql.DB
    sales *TicketSaleRepo
}

// NewAdjustmentRepo returns an AdjustmentRepo using the given database
// and sale repository for the transactional sale mutations.
func NewAdjustmentRepo(db *sql.DB, sales *TicketSaleRepo) *AdjustmentRepo {
    return &AdjustmentRepo{db: db, sales: sales}
}

// Apply records the adjustment and applies its sale mutation
// atomically.  Returns ErrSaleNotFound (wrapped) when the targeted
// sale does not exist; any other failure rolls the whole adjustment
// back.  The generated ID and creation time are populated on success.
func (r *AdjustmentRepo) Apply(ctx context.Context, adj *model.ManualAdjustment) error {
    payload, err := json.Marshal(adj.Payload)
    if err != nil {
        return fmt.Errorf("encode adjustment payload: %w", err)
    }

    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    now := time.Now().UTC()
    const q = `INSERT INTO manual_adjustments (event_id, platform, adjustment_type, payload, reason, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q, adj.EventID, adj.Platform, adj.Type, payload, adj.Reason, adj.CreatedBy, now)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }

    switch adj.Type {
    case model.AdjustmentAddSale:
        sale := &model.TicketSale{
            EventID:        adj.EventID,
            Platform:       adj.Platform,
            ExternalSaleID: adj.Payload.ExternalSaleID,
            Quantity:       adj.Payload.Quantity,
            AmountCents:    adj.Payload.AmountCents,
            Currency:       adj.Payload.Currency,
            PurchasedAt:    adj.Payload.PurchasedAt,
        }
        if err := r.sales.CreateTx(ctx, tx, sale); err != nil {
            return err
        }
    case model.AdjustmentRemoveSale:
        if err := r.sales.DeleteByExternalIDTx(ctx, tx, adj.EventID, adj.Platform, adj.Payload.ExternalSaleID); err != nil {
            return err
        }
    case model.AdjustmentUpdateAmount:
        if err := r.sales.UpdateAmountTx(ctx, tx, adj.EventID, adj.Platform, adj.Payload.ExternalSaleID, adj.Payload.AmountCents); err != nil {
            return err
        }
    default:
        return fmt.Errorf("%w: unknown adjustment type %q", ErrValidation, adj.Type)
    }

    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    adj.ID = uint64(id)
    adj.CreatedAt = now
    return nil
}

// ListByEvent returns the adjustment history for an event, newest
// first.
func (r *AdjustmentRepo) ListByEvent(ctx context.Context, eventID string) ([]model.ManualAdjustment, error) {
    const q = `SELECT id, event_id, platform, adjustment_type, payload, reason, created_by, created_at FROM manual_adjustments WHERE event_id = ? ORDER BY created_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, eventID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.ManualAdjustment
    for rows.Next() {
        var adj model.ManualAdjustment
        var payload []byte
        if err := rows.Scan(&adj.ID, &adj.EventID, &adj.Platform, &adj.Type, &payload, &adj.Reason, &adj.CreatedBy, &adj.CreatedAt); err != nil {
            return nil, err
        }
        if len(payload) > 0 {
            if err := json.Unmarshal(payload, &adj.Payload); err != nil {
                return nil, fmt.Errorf("decode adjustment %d payload: %w", adj.ID, err)
            }
        }
        out = append(out, adj)
    }
    return out, rows.Err()
}
