// Package main is the entry point for the liquidation policy engine: a
// deterministic arbitration core that turns strategy-proposed mandates into
// at most one risk-checked execution intent per symbol per cycle.
//
// Startup sequence:
//  1. Load configuration (environment plus the YAML risk envelope)
//  2. Open the audit and position databases
//  3. Wire the evaluation pipeline (tracker, evaluator, arbitration, intent)
//  4. Start the cycle engine, the scheduler and the HTTP server
//  5. Wait for shutdown signal and drain gracefully
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ksiaz/liquidation-trading-sub000/internal/clients/paper"
	"github.com/ksiaz/liquidation-trading-sub000/internal/config"
	"github.com/ksiaz/liquidation-trading-sub000/internal/database"
	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
	"github.com/ksiaz/liquidation-trading-sub000/internal/engine"
	"github.com/ksiaz/liquidation-trading-sub000/internal/events"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/arbitration"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/audit"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/halt"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/intent"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/invariant"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/ledger"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/lifecycle"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/portfolio"
	"github.com/ksiaz/liquidation-trading-sub000/internal/scheduler"
	"github.com/ksiaz/liquidation-trading-sub000/internal/server"
	"github.com/ksiaz/liquidation-trading-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Strs("symbols", cfg.Symbols).
		Dur("tick_interval", cfg.TickInterval).
		Msg("Starting policy engine")

	// Audit trail uses the ledger profile: the trail is the only explanation
	// surface and must survive power loss.
	auditDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "audit.db"),
		Profile: database.ProfileLedger,
		Name:    "audit",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audit database")
	}
	defer auditDB.Close()

	positionDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "positions.db"),
		Profile: database.ProfileStandard,
		Name:    "positions",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open position database")
	}
	defer positionDB.Close()

	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	auditRepo := audit.NewRepository(auditDB.Conn(), log)
	if err := auditRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audit schema")
	}

	ledgerRepo := ledger.NewRepository(ledgerDB.Conn(), log)
	if err := ledgerRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger schema")
	}

	positionRepo := portfolio.NewPositionRepository(positionDB.Conn(), log)
	if err := positionRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize position schema")
	}

	bus := events.NewBus(log)
	supervisor := halt.NewSupervisor(bus, log)

	tracker, err := lifecycle.NewTracker(positionRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize position tracker")
	}

	evaluator := invariant.NewEvaluator(cfg.Envelope)
	arbiter := arbitration.NewEngine(evaluator)
	constructor := intent.NewConstructor(cfg.Envelope)

	// Paper-mode wiring: simulated feed, simulated fills. The broker's
	// result handler closes over the engine variable bound below.
	basePrices := make(map[string]float64, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		basePrices[symbol] = 100
	}
	feed := paper.NewSimulatedFeed(basePrices, time.Now().UnixNano())

	var eng *engine.Engine
	broker := paper.NewBrokerAdapter(feed, func(result domain.ExecutionResult) {
		eng.OnExecutionResult(result)
	}, log)
	defer broker.Close()

	eng = engine.New(engine.Config{
		Symbols:       cfg.Symbols,
		TickInterval:  cfg.TickInterval,
		Workers:       cfg.Workers,
		Staleness:     cfg.Staleness,
		InitialEquity: cfg.InitialEquity,
	}, engine.Deps{
		Envelope:     cfg.Envelope,
		Tracker:      tracker,
		Evaluator:    evaluator,
		Arbiter:      arbiter,
		Constructor:  constructor,
		Supervisor:   supervisor,
		Observations: feed,
		Strategies:   nil, // external strategy layer attaches here
		Broker:       broker,
		Audit:        auditRepo,
		Fills:        ledgerRepo,
		Bus:          bus,
	}, log)

	sched := scheduler.New(log)
	retention := audit.NewRetentionJob(auditRepo, cfg.AuditRetention, log)
	if err := sched.AddJob("0 0 3 * * *", retention); err != nil {
		log.Error().Err(err).Msg("Failed to schedule audit retention job")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:        log,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		AuditDB:    auditDB,
		PositionDB: positionDB,
		Engine:     eng,
		Tracker:    tracker,
		Supervisor: supervisor,
		AuditRepo:  auditRepo,
		LedgerRepo: ledgerRepo,
		Bus:        bus,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := eng.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Engine loop exited")
		}
	}()

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Engine stopped")
}
