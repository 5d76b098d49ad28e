package model

import "time"

// AdjustmentType enumerates the operator-initiated corrections that
// may be applied to local sales data outside the sync pipeline.
type AdjustmentType string

const (
    AdjustmentAddSale      AdjustmentType = "add_sale"
    AdjustmentRemoveSale   AdjustmentType = "remove_sale"
    AdjustmentUpdateAmount AdjustmentType = "update_amount"
)

// ParseAdjustmentType converts a raw string into an AdjustmentType.
func ParseAdjustmentType(s string) (AdjustmentType, bool) {
    t := AdjustmentType(s)
    switch t {
    case AdjustmentAddSale, AdjustmentRemoveSale, AdjustmentUpdateAmount:
        return t, true
    }
    return "", false
}

// AdjustmentPayload carries the type-specific data for an adjustment.
// add_sale uses every field; remove_sale only ExternalSaleID;
// update_amount uses ExternalSaleID and AmountCents.
type AdjustmentPayload struct {
    ExternalSaleID string    `json:"external_sale_id"`
    Quantity       uint32    `json:"quantity,omitempty"`
    AmountCents    int64     `json:"amount_cents,omitempty"`
    Currency       string    `json:"currency,omitempty"`
    PurchasedAt    time.Time `json:"purchased_at,omitempty"`
}

// ManualAdjustment records an operator correction to local sales data.
// The row and the corresponding ticket_sales mutation are written in a
// single transaction: either both land or neither does.  Adjustments
// are created by explicit user action only, never auto-generated.
type ManualAdjustment struct {
    ID        uint64            // manual_adjustments.id
    EventID   string            // manual_adjustments.event_id
    Platform  Platform          // manual_adjustments.platform
    Type      AdjustmentType    // manual_adjustments.adjustment_type
    Payload   AdjustmentPayload // manual_adjustments.payload (JSON)
    Reason    string            // manual_adjustments.reason
    CreatedBy string            // manual_adjustments.created_by
    CreatedAt time.Time         // manual_adjustments.created_at
}
