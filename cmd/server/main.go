package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/abhishekyadav2000/fpm/internal/adapter/httpapi"
	"github.com/abhishekyadav2000/fpm/internal/adapter/repository/postgres"
	"github.com/abhishekyadav2000/fpm/internal/config"
	"github.com/abhishekyadav2000/fpm/internal/logger"
	"github.com/abhishekyadav2000/fpm/internal/usecase/importer"
	"github.com/abhishekyadav2000/fpm/internal/usecase/metrics"
	"github.com/abhishekyadav2000/fpm/internal/usecase/position"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	log := logger.New()

	// 1. Load configuration (defaults <- file <- env)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// 2. Setup database
	db, err := postgres.NewDB(cfg.ConnString())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// 3. Initialize repositories (Postgres)
	importRepo := postgres.NewImportRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	portfolioRepo := postgres.NewPortfolioRepository(db)
	positionRepo := postgres.NewPositionRepository(db)
	priceRepo := postgres.NewPriceRepository(db)

	// 4. Initialize services (use cases)
	importService := importer.NewImportService(importRepo, transactionRepo, accountRepo)
	positionService := position.NewPositionService(portfolioRepo, positionRepo)
	metricsService := metrics.NewMetricsService(accountRepo, transactionRepo, portfolioRepo, positionRepo, priceRepo)

	// 5. Start HTTP server
	apiServer := httpapi.NewServer(importService, positionService, metricsService, log)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      apiServer.Handler(cfg.APIToken),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()

	waitForShutdown(httpServer, log)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(httpServer *http.Server, log zerolog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
	log.Info().Msg("HTTP server stopped")
}
