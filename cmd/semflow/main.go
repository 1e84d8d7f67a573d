// Package main implements the semflow process: it loads a flow graph, deploys
// it on the lifecycle engine and bridges node ingress and egress over NATS.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/componentregistry"
	"github.com/c360/semflow/config"
	"github.com/c360/semflow/engine"
	"github.com/c360/semflow/health"
	"github.com/c360/semflow/message"
	"github.com/c360/semflow/metric"
	"github.com/c360/semflow/natsclient"
	"github.com/c360/semflow/pkg/retry"
	"github.com/c360/semflow/route"
)

// Build information
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semflow"
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

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cli, err := parseFlags(args)
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cli.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cli.ShowHelp {
		printDetailedHelp(os.Stderr)
		return nil
	}
	if err := validateFlags(cli); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, err := config.Load(cli.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg, cli)

	logger := setupLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cli.Validate {
		logger.Info("Configuration is valid",
			"config_path", cli.ConfigPath,
			"nodes", len(cfg.Nodes),
			"flows", len(cfg.Flows))
		return nil
	}

	logger.Info("Starting semflow",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cli.ConfigPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := start(ctx, cfg, logger)
	if err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
	defer cancel()
	if err := app.shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("Semflow shutdown complete")
	return nil
}

// applyCLIOverrides lets explicit flags win over file and environment settings.
func applyCLIOverrides(cfg *config.Config, cli *CLIConfig) {
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}
	if cli.MetricsPort >= 0 {
		cfg.Metrics.Port = cli.MetricsPort
		cfg.Metrics.Enabled = cli.MetricsPort > 0
	}
}

// app holds everything start wired so shutdown can unwind it in order.
type app struct {
	logger  *slog.Logger
	client  *natsclient.Client
	egress  *route.NATS
	async   *route.Async
	engine  *engine.Engine
	subs    []*nats.Subscription
	metrics *metric.Server
}

func start(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}
	registry := metric.NewMetricsRegistry()

	client, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait.Std()),
		natsclient.WithName(appName),
		natsclient.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	logger.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := client.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	a.client = client

	a.egress = route.NewNATS(client, cfg.NATS.Prefix,
		route.WithRetry(retryConfig(cfg.NATS.Retry)),
		route.WithNATSLogger(logger))
	a.async = route.NewAsync(a.egress, route.AsyncConfig{
		Workers:   cfg.Runtime.ForwardWorkers,
		QueueSize: cfg.Runtime.ForwardQueue,
		Logger:    logger,
		Metrics:   registry,
	})
	// The pool outlives the signal context so shutdown can drain it.
	if err := a.async.Start(context.Background()); err != nil {
		_ = a.shutdown(context.Background())
		return nil, fmt.Errorf("start forward pool: %w", err)
	}

	components := component.NewRegistry()
	if err := componentregistry.Register(components); err != nil {
		_ = a.shutdown(context.Background())
		return nil, fmt.Errorf("register components: %w", err)
	}
	logger.Debug("Node kinds registered", "kinds", components.ListKinds())

	eng, err := engine.New(components, a.async,
		engine.WithLogger(logger),
		engine.WithMetrics(registry),
		engine.WithRuntime(cfg.Runtime))
	if err != nil {
		_ = a.shutdown(context.Background())
		return nil, fmt.Errorf("create engine: %w", err)
	}
	if err := eng.Deploy(cfg); err != nil {
		_ = a.shutdown(context.Background())
		return nil, fmt.Errorf("deploy graph: %w", err)
	}
	a.engine = eng
	// Like the forward pool, the run loop is stopped explicitly by shutdown.
	if err := eng.Start(context.Background()); err != nil {
		_ = a.shutdown(context.Background())
		return nil, fmt.Errorf("start run loop: %w", err)
	}

	for _, id := range eng.NodeIDs() {
		sub, err := route.SubscribeIngress(client.Conn(), cfg.NATS.Prefix, id, logger, a.deliver(id))
		if err != nil {
			_ = a.shutdown(context.Background())
			return nil, fmt.Errorf("subscribe node %s: %w", id, err)
		}
		a.subs = append(a.subs, sub)
	}

	if cfg.Metrics.Enabled {
		a.metrics = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		a.metrics.SetHealthHandler(a.healthChecker().Handler())
		go func() {
			if err := a.metrics.Start(); err != nil {
				logger.Error("Metrics server stopped", "error", err)
			}
		}()
		logger.Info("Metrics server listening", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
	}

	logger.Info("Semflow started", "nodes", len(a.subs), "prefix", cfg.NATS.Prefix)
	return a, nil
}

func (a *app) healthChecker() *health.Checker {
	checker := health.NewChecker(appName)
	checker.Register("nats", func(context.Context) health.Status {
		status := a.client.Status()
		switch status {
		case natsclient.StatusConnected:
			return health.NewHealthy("nats", "connected")
		case natsclient.StatusReconnecting, natsclient.StatusCircuitOpen:
			return health.NewDegraded("nats", status.String()).WithDetail("failures", a.client.Failures())
		default:
			return health.NewUnhealthy("nats", status.String())
		}
	})
	checker.Register("engine", func(context.Context) health.Status {
		nodes := len(a.engine.NodeIDs())
		if nodes == 0 {
			return health.NewUnhealthy("engine", "no graph deployed")
		}
		return health.NewHealthy("engine", "graph deployed").
			WithDetail("nodes", nodes).
			WithDetail("open_contexts", len(a.engine.Scheduler().Open())).
			WithDetail("pending", a.engine.Scheduler().Pending())
	})
	checker.Register("forward", func(context.Context) health.Status {
		stats := a.async.Stats()
		s := health.NewHealthy("forward", "queue draining")
		if stats.QueueSize > 0 && stats.QueueDepth*10 >= stats.QueueSize*9 {
			s = health.NewDegraded("forward", "queue nearly full")
		}
		return s.WithDetail("queue_depth", stats.QueueDepth).WithDetail("dropped", stats.Dropped)
	})
	return checker
}

func (a *app) deliver(node string) func(*message.Message) {
	return func(msg *message.Message) {
		if err := a.engine.Submit(node, msg); err != nil {
			a.logger.Warn("Failed to submit message", "node", node, "error", err)
		}
	}
}

// shutdown stops ingress first so no new contexts open, then lets the run
// loop and egress drain.
func (a *app) shutdown(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, sub := range a.subs {
		if err := sub.Unsubscribe(); err != nil {
			a.logger.Warn("Failed to unsubscribe ingress", "subject", sub.Subject, "error", err)
		}
	}
	remaining := func() time.Duration {
		if deadline, ok := ctx.Deadline(); ok {
			return time.Until(deadline)
		}
		return 5 * time.Second
	}
	if a.engine != nil {
		keep(a.engine.Stop(remaining()))
		a.engine.Undeploy()
	}
	if a.async != nil {
		keep(a.async.Stop(remaining()))
	}
	if a.egress != nil {
		a.egress.Close()
	}
	if a.client != nil {
		keep(a.client.Close(ctx))
	}
	if a.metrics != nil {
		keep(a.metrics.Stop())
	}
	return firstErr
}

func retryConfig(rc config.RetryConfig) retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = rc.MaxAttempts
	cfg.InitialDelay = rc.InitialDelay.Std()
	cfg.MaxDelay = rc.MaxDelay.Std()
	return cfg
}
