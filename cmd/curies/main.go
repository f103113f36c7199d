// Package main implements the entry point for the curies mapping service,
// a SPARQL endpoint that serves owl:sameAs equivalences between CURIEs and
// URIs computed from a prefix registry.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/vemonet/curies/client"
	"github.com/vemonet/curies/config"
	"github.com/vemonet/curies/gateway"
	"github.com/vemonet/curies/graph"
	"github.com/vemonet/curies/health"
	"github.com/vemonet/curies/metric"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "curies-sparql"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// CLI flags win over config file and env
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("Configuration is valid",
			"records", len(cfg.Records), "addr", cfg.Server.Addr)
		return nil
	}

	return runServers(cfg, logger, cliCfg)
}

// runServers wires the converter, graph, gateway and metrics server together
// and runs them until a signal or a server failure
func runServers(cfg *config.Config, logger *slog.Logger, cliCfg *CLIConfig) error {
	conv, err := cfg.Converter()
	if err != nil {
		return fmt.Errorf("build converter: %w", err)
	}
	logger.Info("Prefix registry loaded", "records", len(cfg.Records))

	var registry *metric.Registry
	if cfg.Metrics.Enabled {
		registry = metric.NewRegistry()
		registry.Metrics.RegisteredPrefixes.Set(float64(len(cfg.Records)))
	}

	graphOpts := []graph.Option{graph.WithLogger(logger)}
	if registry != nil {
		graphOpts = append(graphOpts, graph.WithMetrics(registry.Metrics))
	}
	var sparqlClient *client.Client
	if cfg.Federation.Enabled {
		sparqlClient = client.New(
			client.WithTimeout(cfg.Federation.Timeout.Std()),
			client.WithProbeTimeout(cfg.Federation.ProbeTimeout.Std()),
		)
		graphOpts = append(graphOpts, graph.WithRemote(sparqlClient))
		if len(cfg.Federation.Endpoints) > 0 {
			graphOpts = append(graphOpts, graph.WithAllowedEndpoints(cfg.Federation.Endpoints...))
		}
	}
	sameAsGraph := graph.New(conv, graphOpts...)

	monitor := health.NewMonitor(appName, cfg.Federation.ProbeTimeout.Std())
	monitor.Register(health.CheckerFunc{
		ComponentName: "registry",
		Fn: func(context.Context) health.Status {
			return health.NewHealthy("registry",
				fmt.Sprintf("%d records loaded", len(cfg.Records))).
				WithMetrics(&health.Metrics{RegisteredPrefixes: len(cfg.Records)})
		},
	})
	if sparqlClient != nil && len(cfg.Federation.Endpoints) > 0 {
		monitor.Register(federationChecker(sparqlClient, cfg.Federation.Endpoints))
	}

	gatewayOpts := []gateway.Option{
		gateway.WithHealthMonitor(monitor),
		gateway.WithLogger(logger),
	}
	if registry != nil {
		gatewayOpts = append(gatewayOpts, gateway.WithMetrics(registry.Metrics))
	}

	gw, err := gateway.New(gateway.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout.Std(),
		WriteTimeout:    cfg.Server.WriteTimeout.Std(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Std(),
		MaxQueryBytes:   cfg.Server.MaxQueryBytes,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}, sameAsGraph, gatewayOpts...)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(gw.Start)
	if registry != nil {
		metricsServer := metric.NewServer(cfg.Metrics.Addr, registry)
		group.Go(metricsServer.Start)
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
			defer cancel()
			return metricsServer.Stop(shutdownCtx)
		})
		logger.Info("Metrics endpoint listening", "addr", cfg.Metrics.Addr)
	}
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		defer cancel()
		return gw.Stop(shutdownCtx)
	})

	return group.Wait()
}

// federationChecker probes the configured remote endpoints and reports
// degraded when some answer and unhealthy when none do
func federationChecker(sparqlClient *client.Client, endpoints []string) health.Checker {
	return health.CheckerFunc{
		ComponentName: "federation",
		Fn: func(ctx context.Context) health.Status {
			alive := sparqlClient.AvailableEndpoints(ctx, endpoints)
			metrics := &health.Metrics{
				ReachableEndpoints: len(alive),
				TotalEndpoints:     len(endpoints),
			}
			switch {
			case len(alive) == len(endpoints):
				return health.NewHealthy("federation", "all endpoints reachable").WithMetrics(metrics)
			case len(alive) > 0:
				return health.NewDegraded("federation",
					fmt.Sprintf("%d of %d endpoints reachable", len(alive), len(endpoints))).
					WithMetrics(metrics)
			default:
				return health.NewUnhealthy("federation", "no endpoints reachable").WithMetrics(metrics)
			}
		},
	}
}
