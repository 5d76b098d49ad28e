// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names used by the publisher and consumer.  Both queues are
// declared durable so messages survive broker restarts.
const (
    RunCompletedQueue        = "reconciliation.completed"
    CriticalDiscrepancyQueue = "discrepancy.critical"
)

// RunCompletedEvent is published when a reconciliation run finishes,
// whether completed or failed.  It carries enough information for
// downstream consumers to log, notify, or trigger dashboards without
// querying the primary database.
type RunCompletedEvent struct {
    RunID              uint64 `json:"run_id"`
    EventID            string `json:"event_id"`
    Platform           string `json:"platform,omitempty"`
    TriggeredBy        string `json:"triggered_by"`
    Status             string `json:"status"`
    SyncHealth         string `json:"sync_health"`
    DiscrepanciesFound int    `json:"discrepancies_found"`
    CompletedAt        string `json:"completed_at"`
}

// CriticalDiscrepancyEvent is published once per critical discrepancy
// created by a run, so alerting can surface them without polling the
// primary database.
type CriticalDiscrepancyEvent struct {
    DiscrepancyID  uint64 `json:"discrepancy_id"`
    EventID        string `json:"event_id"`
    Platform       string `json:"platform"`
    ExternalSaleID string `json:"external_sale_id"`
    Type           string `json:"type"`
    ExpectedValue  string `json:"expected_value"`
    ActualValue    string `json:"actual_value"`
    DetectedAt     string `json:"detected_at"`
}
