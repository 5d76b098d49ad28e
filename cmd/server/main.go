package main // Entry point for the ticket reconciliation service

import (
    "context"
    "log"
    "os/signal"
    "syscall"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/standupsydney/ticket-reconciliation/internal/config"
    "github.com/standupsydney/ticket-reconciliation/internal/database"
    "github.com/standupsydney/ticket-reconciliation/internal/handler"
    "github.com/standupsydney/ticket-reconciliation/internal/model"
    "github.com/standupsydney/ticket-reconciliation/internal/platform"
    "github.com/standupsydney/ticket-reconciliation/internal/queue"
    "github.com/standupsydney/ticket-reconciliation/internal/repository"
    "github.com/standupsydney/ticket-reconciliation/internal/router"
    "github.com/standupsydney/ticket-reconciliation/internal/scheduler"
    "github.com/standupsydney/ticket-reconciliation/internal/service"
)

func main() {
    _ = godotenv.Load() // best-effort; production sets real env vars
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer func() { _ = db.Close() }()

    rdb := config.NewRedisClient() // nil when Redis is unreachable; middleware degrades
    if rdb == nil {
        log.Printf("redis unavailable: rate limiting and stats caching disabled")
    }

    // Repositories share the one pool; the adjustment repo composes the
    // sale repo for its transactional mutations.
    sales := repository.NewTicketSaleRepo(db)
    discrepancies := repository.NewDiscrepancyRepo(db)
    runs := repository.NewRunRepo(db)
    adjustments := repository.NewAdjustmentRepo(db, sales)

    // Platform connectors, one per provider, behind a single registry.
    connectors := platform.NewRegistry()
    connectors.Register(model.PlatformHumanitix, platform.NewHumanitixClient(cfg.HumanitixBaseURL, cfg.HumanitixAPIKey))
    connectors.Register(model.PlatformEventbrite, platform.NewEventbriteClient(cfg.EventbriteURL, cfg.EventbriteToken))

    engine := service.NewReconciler(sales, discrepancies, runs, adjustments, connectors,
        service.NewAMQPPublisher(), service.Policy{
            AmountToleranceCents: cfg.AmountToleranceCents,
            CriticalAmountCents:  cfg.CriticalAmountCents,
            FetchTimeout:         cfg.FetchTimeout,
        })

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    go func() {
        if err := queue.StartConsumer(); err != nil {
            log.Printf("recon-consumer: %v", err)
        }
    }()

    if cfg.ScheduleEnabled {
        go scheduler.New(engine, sales, runs, cfg.ScheduleInterval).Run(ctx)
    } else {
        log.Printf("scheduler disabled; reconciliation runs on demand only")
    }

    e := echo.New()
    router.RegisterRoutes(e)
    router.RegisterReconciliation(e, handler.NewReconciliationHandler(engine), cfg.JWTSecret, rdb)

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
