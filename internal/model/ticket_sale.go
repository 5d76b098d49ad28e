package model

import "time"

// TicketSale is a locally recorded sale for an event on one platform.
// Rows are written by the sync ingestion pipeline (outside this
// service) or via manual adjustments; reconciliation only reads them.
//
// Fields:
//  ID             – primary key identifier.
//  EventID        – event this sale belongs to (owned externally).
//  Platform       – platform the sale was made on.
//  ExternalSaleID – order/sale id assigned by the platform.
//  Quantity       – number of tickets in the sale.
//  AmountCents    – total amount in minor currency units.
//  Currency       – ISO 4217 currency code.
//  PurchasedAt    – purchase timestamp reported by the platform.
//  CreatedAt      – timestamp when the row was recorded locally.
type TicketSale struct {
    ID             uint64    // ticket_sales.id
    EventID        string    // ticket_sales.event_id
    Platform       Platform  // ticket_sales.platform
    ExternalSaleID string    // ticket_sales.external_sale_id
    Quantity       uint32    // ticket_sales.quantity
    AmountCents    int64     // ticket_sales.amount_cents
    Currency       string    // ticket_sales.currency
    PurchasedAt    time.Time // ticket_sales.purchased_at
    CreatedAt      time.Time // ticket_sales.created_at
}
