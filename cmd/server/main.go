// Package main is the entry point for the fintrack portfolio valuation engine.
// It wires the databases, repositories and services, starts the background
// scheduler (snapshot coordinator, price refresh) and serves the HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Gonzalez8/fintrack/internal/clients/yahoo"
	"github.com/Gonzalez8/fintrack/internal/config"
	"github.com/Gonzalez8/fintrack/internal/database"
	"github.com/Gonzalez8/fintrack/internal/modules/accounts"
	"github.com/Gonzalez8/fintrack/internal/modules/assets"
	"github.com/Gonzalez8/fintrack/internal/modules/ledger"
	"github.com/Gonzalez8/fintrack/internal/modules/portfolio"
	"github.com/Gonzalez8/fintrack/internal/modules/reports"
	"github.com/Gonzalez8/fintrack/internal/modules/settings"
	"github.com/Gonzalez8/fintrack/internal/modules/snapshots"
	"github.com/Gonzalez8/fintrack/internal/prices"
	"github.com/Gonzalez8/fintrack/internal/scheduler"
	"github.com/Gonzalez8/fintrack/internal/server"
	"github.com/Gonzalez8/fintrack/pkg/logger"
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

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting fintrack")

	// Main store: ledger, assets, accounts, snapshots, settings.
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "fintrack.db"),
		Profile: database.ProfileLedger,
		Name:    "fintrack",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open fintrack.db")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate fintrack.db")
	}

	// Feed-response cache, safe to lose.
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache.db")
	}
	defer cacheDB.Close()

	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache.db")
	}

	// Repositories.
	settingsRepo := settings.NewRepository(db.Conn(), log)
	assetRepo := assets.NewRepository(db.Conn(), log)
	ledgerRepo := ledger.NewTransactionRepository(db.Conn(), log)
	accountRepo := accounts.NewRepository(db.Conn(), log)
	snapRepo := snapshots.NewRepository(db.Conn(), log)

	// Price feed and resolver.
	feed := yahoo.NewClient(yahoo.NewCacheRepository(cacheDB.Conn()), cfg.PriceFeedBaseURL)
	resolver := prices.NewResolver(feed, log)
	refreshSvc := assets.NewRefreshService(assetRepo, resolver, log)

	// Services.
	valuator := portfolio.NewService(ledgerRepo, assetRepo, settingsRepo, log)
	writer := snapshots.NewWriter(db.Conn(), valuator, snapRepo, settingsRepo, log)
	reportsSvc := reports.NewService(valuator, ledgerRepo, assetRepo, accountRepo, settingsRepo, log)

	// Background jobs. The snapshot coordinator ticks every minute and decides
	// internally whether a capture is due; the price refresh does the same for
	// its own interval setting.
	sched := scheduler.New(log)
	if err := sched.AddJob("@every 1m", scheduler.NewSnapshotJob(db.Conn(), settingsRepo, snapRepo, writer, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register snapshot job")
	}
	if err := sched.AddJob("@every 1m", scheduler.NewPriceRefreshJob(settingsRepo, refreshSvc, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register price refresh job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:     log,
		Cfg:     cfg,
		DB:      db,
		CacheDB: cacheDB,
		Handlers: server.NewHandlers(
			assetRepo, refreshSvc, ledgerRepo, accountRepo,
			valuator, snapRepo, writer, settingsRepo, reportsSvc, log,
		),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server stopped")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down HTTP server cleanly")
	}

	log.Info().Msg("fintrack stopped")
}
