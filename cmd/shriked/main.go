// shriked is the notification prioritization daemon: it evaluates inbound
// events through the decision pipeline and serves the operator API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/shrikectl/shrike/internal/audit"
	"github.com/shrikectl/shrike/internal/breaker"
	"github.com/shrikectl/shrike/internal/config"
	"github.com/shrikectl/shrike/internal/kvstore"
	"github.com/shrikectl/shrike/internal/logging"
	"github.com/shrikectl/shrike/internal/metrics"
	"github.com/shrikectl/shrike/internal/prioritizer"
	"github.com/shrikectl/shrike/internal/rules"
	"github.com/shrikectl/shrike/internal/scoring"
	"github.com/shrikectl/shrike/internal/server"
)

func main() {
	var (
		configPath string
		addr       string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

// run wires the engine and serves until a shutdown signal arrives.
// Separated from main() for testability.
func run(cfg config.Config, logger *zap.Logger) error {
	logger.Info("Starting shrike",
		zap.String("addr", cfg.ListenAddr),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("scorer_enabled", cfg.ScorerEnabled),
		zap.String("scorer_url", cfg.ScorerURL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ruleEngine := rules.NewEngine(logger)
	if cfg.RulesFile != "" {
		added, err := ruleEngine.LoadFile(cfg.RulesFile)
		if err != nil {
			return fmt.Errorf("loading rules: %w", err)
		}
		logger.Info("Loaded rules file",
			zap.String("path", cfg.RulesFile),
			zap.Int("rules_added", added),
		)
	}

	var contextScorer scoring.ContextScorer
	if cfg.ScorerURL != "" {
		contextScorer = scoring.NewRemote(scoring.RemoteOptions{
			BaseURL: cfg.ScorerURL,
			Logger:  logger,
		})
	} else {
		contextScorer = scoring.NewSimulated()
	}
	scorer := scoring.New(scoring.Options{
		Context: contextScorer,
		Breaker: breaker.New(breaker.Options{
			FailureThreshold: cfg.BreakerFailureThreshold,
			ResetTimeout:     cfg.BreakerReset(),
			Logger:           logger,
		}),
		Timeout:  cfg.ScorerTimeout(),
		Disabled: !cfg.ScorerEnabled,
		Logger:   logger,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine := prioritizer.New(prioritizer.Options{
		Store:   store,
		Rules:   ruleEngine,
		Scorer:  scorer,
		Audit:   audit.NewLog(logger),
		Metrics: metrics.NewRecorder(registry),
		Logger:  logger,
	})

	srv := server.New(server.Options{
		Addr:           cfg.ListenAddr,
		Engine:         engine,
		Gatherer:       registry,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         logger,
	})
	return srv.Start(ctx)
}

// buildStore creates the configured state backend. Redis is pinged before
// the daemon starts serving so a dead store fails fast.
func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (kvstore.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		store := kvstore.NewRedis(kvstore.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Logger:   logger,
		})
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("redis store: %w", err)
		}
		return store, nil
	default:
		return kvstore.NewMemory(kvstore.DefaultMemoryOptions()), nil
	}
}
