// Package scheduler drives periodic reconciliation.  The engine stays
// stateless between invocations; the scheduler owns the timing and the
// backpressure rule that no event is dispatched while a previous run
// for it is still active.
package scheduler

import (
    "context"
    "log"
    "time"

    "github.com/standupsydney/ticket-reconciliation/internal/model"
    "github.com/standupsydney/ticket-reconciliation/internal/service"
)

// Engine is the slice of the reconciliation engine the scheduler needs.
type Engine interface {
    ReconcileEvent(ctx context.Context, eventID string, p *model.Platform, triggeredBy string) (*service.RunResult, error)
}

// EventLister supplies the event ids eligible for a sweep.
type EventLister interface {
    EventIDsWithSales(ctx context.Context) ([]string, error)
}

// RunChecker reports whether an event already has a run in flight.
type RunChecker interface {
    HasActiveRun(ctx context.Context, eventID string) (bool, error)
}

// Scheduler sweeps every event with recorded sales once per interval.
// Failed runs are not retried within the interval; they get another
// attempt on the next sweep.
type Scheduler struct {
    engine   Engine
    events   EventLister
    runs     RunChecker
    interval time.Duration
}

// New builds a scheduler.  interval <= 0 defaults to one hour.
func New(engine Engine, events EventLister, runs RunChecker, interval time.Duration) *Scheduler {
    if interval <= 0 {
        interval = time.Hour
    }
    return &Scheduler{engine: engine, events: events, runs: runs, interval: interval}
}

// Run sweeps immediately, then once per interval until ctx is
// cancelled.  It blocks; callers run it in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
    log.Printf("scheduler: starting, interval=%s", s.interval)
    s.Sweep(ctx)

    ticker := time.NewTicker(s.interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            log.Printf("scheduler: stopping: %v", ctx.Err())
            return
        case <-ticker.C:
            s.Sweep(ctx)
        }
    }
}

// Sweep reconciles every eligible event once, skipping events whose
// previous run has not completed.  Individual failures are logged and
// do not stop the sweep.
func (s *Scheduler) Sweep(ctx context.Context) {
    ids, err := s.events.EventIDsWithSales(ctx)
    if err != nil {
        log.Printf("scheduler: list events failed: %v", err)
        return
    }
    for _, id := range ids {
        if ctx.Err() != nil {
            return
        }
        active, err := s.runs.HasActiveRun(ctx, id)
        if err != nil {
            log.Printf("scheduler: active-run check failed for event %s: %v", id, err)
            continue
        }
        if active {
            log.Printf("scheduler: skipping event %s, previous run still active", id)
            continue
        }
        res, err := s.engine.ReconcileEvent(ctx, id, nil, service.TriggerSchedule)
        if err != nil {
            log.Printf("scheduler: reconcile event %s failed: %v", id, err)
            continue
        }
        if res.Run.DiscrepanciesFound > 0 {
            log.Printf("scheduler: event %s run %d found %d discrepancies (health=%s)",
                id, res.Run.ID, res.Run.DiscrepanciesFound, res.Run.SyncHealth)
        }
    }
}
