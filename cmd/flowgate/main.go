// Flowgate entry point.
//
// Usage:
//
//	flowgate serve                      # serve MCP over stdio
//	flowgate serve --config config.yaml # with a config file
//	flowgate version                    # show version information
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flowgate/flowgate/config"
	"github.com/flowgate/flowgate/gate"
	"github.com/flowgate/flowgate/history"
	"github.com/flowgate/flowgate/internal/metrics"
	"github.com/flowgate/flowgate/server"
	"github.com/flowgate/flowgate/workflow"
)

// Injected at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader().WithValidator(func(c *config.Config) error {
		return c.Validate()
	})
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Flowgate",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		collector = metrics.NewCollector(cfg.Metrics.Namespace, registry, logger)
		go serveMetrics(cfg.Metrics.Port, registry, logger)
	}

	gates := gate.NewRegistry(logger).WithCollector(collector)

	engine := workflow.NewEngine(defaultExecutors(logger), gates, logger).
		WithCollector(collector)
	if cfg.Engine.RateLimit > 0 {
		engine = engine.WithRateLimit(rate.Limit(cfg.Engine.RateLimit), cfg.Engine.RateBurst)
	}

	store, err := openHistoryStore(cfg.History, logger)
	if err != nil {
		logger.Fatal("Failed to open history store", zap.Error(err))
	}
	defer store.Close()

	defaults := workflow.DefaultOptions()
	defaults.Timeout = cfg.Engine.DefaultTimeout
	defaults.MaxParallel = cfg.Engine.MaxParallel

	srv := server.NewServer(engine, gates, store, Version, logger).
		WithExecutionDefaults(defaults)
	if err := srv.ServeStdio(); err != nil {
		logger.Fatal("Server terminated", zap.Error(err))
	}

	logger.Info("Flowgate stopped")
}

// serveMetrics exposes /metrics on its own port. The MCP transport owns
// stdio, so prometheus scraping gets a plain HTTP listener.
func serveMetrics(port int, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics listener failed", zap.Error(err))
	}
}

func openHistoryStore(cfg config.HistoryConfig, logger *zap.Logger) (history.Store, error) {
	switch cfg.Backend {
	case "redis":
		store, err := history.NewRedisStore(history.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			Keep:      cfg.Keep,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("History store connected",
			zap.String("backend", "redis"),
			zap.String("addr", cfg.Redis.Addr),
		)
		return store, nil
	default:
		logger.Info("History store ready", zap.String("backend", "memory"))
		return history.NewMemoryStore(cfg.Keep), nil
	}
}

func printVersion() {
	fmt.Printf("Flowgate %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`Flowgate - workflow orchestration with quality gates

Usage:
  flowgate <command> [options]

Commands:
  serve     Serve MCP tools over stdio
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Examples:
  flowgate serve
  flowgate serve --config /etc/flowgate/config.yaml
  flowgate version`)
}
