package model

import "time"

// RunStatus is the lifecycle state of a reconciliation run.
type RunStatus string

const (
    RunRunning   RunStatus = "running"
    RunCompleted RunStatus = "completed"
    RunFailed    RunStatus = "failed"
)

// SyncHealth summarizes how well local data matched the platform in
// one run: healthy when no discrepancies were found, warning when any
// were found, critical when at least one critical discrepancy was
// created.
type SyncHealth string

const (
    HealthHealthy  SyncHealth = "healthy"
    HealthWarning  SyncHealth = "warning"
    HealthCritical SyncHealth = "critical"
)

// ReconciliationRun records one execution of the reconciliation
// algorithm for an event.  Runs form a permanent audit trail: a row is
// inserted when the run starts and updated exactly once on completion
// or failure, never deleted.
//
// Fields:
//  ID                  – primary key identifier.
//  EventID             – event being reconciled.
//  Platform            – nil means all platforms with recorded sales.
//  TriggeredBy         – "schedule" or the operator id for manual runs.
//  Status              – running / completed / failed.
//  DiscrepanciesFound  – new discrepancies created in this run.
//  TotalLocalSales     – local sale rows compared.
//  TotalPlatformSales  – platform sale rows compared.
//  TotalLocalCents     – summed local amount across compared sales.
//  TotalPlatformCents  – summed platform amount across compared sales.
//  SyncHealth          – see SyncHealth; empty while running.
//  ErrorMessage        – set when the run failed.
//  StartedAt           – run start timestamp.
//  CompletedAt         – completion/failure timestamp (nullable).
type ReconciliationRun struct {
    ID                 uint64     // reconciliation_runs.id
    EventID            string     // reconciliation_runs.event_id
    Platform           *Platform  // reconciliation_runs.platform (nullable)
    TriggeredBy        string     // reconciliation_runs.triggered_by
    Status             RunStatus  // reconciliation_runs.status
    DiscrepanciesFound int        // reconciliation_runs.discrepancies_found
    TotalLocalSales    int        // reconciliation_runs.total_local_sales
    TotalPlatformSales int        // reconciliation_runs.total_platform_sales
    TotalLocalCents    int64      // reconciliation_runs.total_local_cents
    TotalPlatformCents int64      // reconciliation_runs.total_platform_cents
    SyncHealth         SyncHealth // reconciliation_runs.sync_health
    ErrorMessage       *string    // reconciliation_runs.error_message (nullable)
    StartedAt          time.Time  // reconciliation_runs.started_at
    CompletedAt        *time.Time // reconciliation_runs.completed_at (nullable)
}
