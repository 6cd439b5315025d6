package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/symbolcache/symbolcache/internal/cell"
	"github.com/symbolcache/symbolcache/internal/config"
	"github.com/symbolcache/symbolcache/internal/httpapi"
	applog "github.com/symbolcache/symbolcache/internal/log"
	"github.com/symbolcache/symbolcache/internal/marketdata"
	"github.com/symbolcache/symbolcache/internal/metrics"
	"github.com/symbolcache/symbolcache/internal/net/budget"
	"github.com/symbolcache/symbolcache/internal/query"
	"github.com/symbolcache/symbolcache/internal/warmup"
)

const (
	appName = "stockcache"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Stock symbol enrichment cache",
		Version: version,
		Long: `stockcache keeps an in-memory cache, warmed once at startup, of stock
symbol metadata enriched from a market-data provider, and serves it over
a small read-only HTTP API.`,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Warm the cache and serve it over HTTP",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "config.yaml", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("stockcache: fatal error")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("stockcache: %w", err)
	}

	budgetTracker := budget.NewTracker(cfg.Budget.DailyLimit, cfg.Budget.ResetHour, cfg.Budget.WarnThreshold)

	marketClient, err := marketdata.NewHTTPClient(marketdata.Config{
		APIKey:                  cfg.Provider.APIKey,
		BaseURL:                 cfg.Provider.BaseURL,
		Exchange:                cfg.Provider.Exchange,
		MIC:                     cfg.Provider.MIC,
		RateLimit:               float64(cfg.Provider.RPS),
		RateBurst:               cfg.Provider.Burst,
		MaxParallelFetches:      cfg.Warmup.MaxParallelFetches,
		BackoffBase:             cfg.Provider.BackoffMS.GetBaseBackoff(),
		BackoffMax:              cfg.Provider.BackoffMS.GetMaxBackoff(),
		CircuitFailureThreshold: cfg.Provider.Circuit.FailureThreshold,
		CircuitSuccessThreshold: cfg.Provider.Circuit.SuccessThreshold,
		CircuitTimeout:          cfg.Provider.Circuit.GetTimeout(),
		CircuitRequestTimeout:   cfg.Provider.Circuit.GetRequestTimeout(),
	}, budgetTracker)
	if err != nil {
		return fmt.Errorf("stockcache: failed to build market client: %w", err)
	}

	registry := cell.NewRegistry()
	bridge := query.NewBridge(registry)

	pipelineCfg := warmup.Config{
		MaxParallelFetches: cfg.Warmup.MaxParallelFetches,
		MaxAttempts:        cfg.Warmup.MaxAttempts,
		BackoffBase:        cfg.Warmup.GetBackoffBase(),
		BackoffMax:         cfg.Warmup.GetBackoffMax(),
	}
	pipeline := warmup.NewPipeline(marketClient, registry, pipelineCfg)

	reporter := query.NewReporter(pipeline.Progress(), marketClient.Breaker(), budgetTracker)
	metricsRegistry := metrics.NewRegistry()

	serverCfg := httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		AskTimeout:   cfg.Server.GetAskTimeout(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	server := httpapi.NewServer(serverCfg, bridge, reporter, metricsRegistry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stepLog := applog.NewStepLogger("startup", []string{"warmup"})
		stepLog.StartStep("warmup")
		if err := pipeline.Run(ctx); err != nil {
			log.Error().Err(err).Msg("stockcache: warm-up run failed")
		}
		stepLog.Finish()
		log.Info().
			Int("cells", registry.Count()).
			Msg("stockcache: warm-up complete")
	}()

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	log.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Msg("stockcache: serving")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("stockcache: shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("stockcache: server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("stockcache: shutdown error: %w", err)
	}

	log.Info().Msg("stockcache: shutdown complete")
	return nil
}
