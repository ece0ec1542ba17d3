package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/rulecrawl/internal/api"
	"github.com/jmylchreest/rulecrawl/internal/config"
	"github.com/jmylchreest/rulecrawl/internal/logger"
	"github.com/jmylchreest/rulecrawl/internal/metrics"
	"github.com/jmylchreest/rulecrawl/internal/storage"
	"github.com/jmylchreest/rulecrawl/pkg/rulecrawl"
)

const shutdownTimeout = 30 * time.Second

var serveFlags = withKeys(renderFlags, map[string]string{
	"addr":           "server.addr",
	"postgres-url":   "postgres_url",
	"redis-addr":     "redis_addr",
	"redis-password": "redis_password",
	"redis-db":       "redis_db",
	"results-ttl":    "results_ttl",
})

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve rule management, templates and scraping over HTTP.

Rules are kept in memory unless --postgres-url is set. The latest
results are kept in memory unless --redis-addr is set. Prometheus
metrics are exposed on /metrics.

Endpoints:
  GET    /api/health
  GET    /api/rules            POST /api/rules
  GET    /api/rules/{id}       PUT  /api/rules/{id}   DELETE /api/rules/{id}
  GET    /api/templates        GET  /api/templates/{name}
  GET    /api/presets
  POST   /api/scrape
  GET    /api/results
  GET    /api/export/{csv|json|jsonl|yaml}`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd, serveFlags)
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", ":5000", "listen address")
	flags.String("postgres-url", "", "PostgreSQL connection string for rule storage")
	flags.String("redis-addr", "", "Redis address for result storage")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database")
	flags.Duration("results-ttl", 24*time.Hour, "how long Redis keeps the latest results (0 = forever)")

	addRenderFlags(flags)
}

func runServe(_ *cobra.Command, _ []string) error {
	initLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	provider, err := cfg.NewProvider()
	if err != nil {
		return fmt.Errorf("failed to create render provider: %w", err)
	}
	engine, err := rulecrawl.New(provider, cfg.EngineOptions(m)...)
	if err != nil {
		_ = provider.Close()
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() { _ = engine.Close() }()

	rules, err := openRuleStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open rule store: %w", err)
	}
	defer func() { _ = rules.Close() }()

	results, err := openResultStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open result store: %w", err)
	}
	defer func() { _ = results.Close() }()

	srv := api.NewServer(cfg.Server, api.Deps{
		Runner:  engine,
		Rules:   rules,
		Results: results,
		Metrics: m,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func openRuleStore(ctx context.Context, cfg *config.Config) (storage.RuleStore, error) {
	if cfg.PostgresURL == "" {
		logger.Info("using in-memory rule store")
		return storage.NewMemoryRuleStore(), nil
	}
	store, err := storage.NewPostgresRuleStore(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	logger.Info("using postgres rule store")
	return store, nil
}

func openResultStore(ctx context.Context, cfg *config.Config) (storage.ResultStore, error) {
	if cfg.RedisAddr == "" {
		logger.Info("using in-memory result store")
		return storage.NewMemoryResultStore(), nil
	}
	store, err := storage.NewRedisResultStore(ctx, &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.ResultsTTL)
	if err != nil {
		return nil, err
	}
	logger.Info("using redis result store", "addr", cfg.RedisAddr, "ttl", cfg.ResultsTTL)
	return store, nil
}
