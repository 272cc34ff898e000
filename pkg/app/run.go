// Package app provides the shared entry point for the coda binary.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/frejasky/coda/internal/config"
	"github.com/frejasky/coda/internal/core"
	"github.com/frejasky/coda/internal/observability"
	"github.com/frejasky/coda/internal/reload"
	"github.com/frejasky/coda/internal/security"
	"github.com/prometheus/client_golang/prometheus"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run loads configuration, starts all modules, wires the agent stack,
// and blocks until a shutdown signal is received. SIGHUP and config
// file changes trigger a live configuration reload.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	// All log output passes through the secret redactor. Modules add
	// their own credentials to it during Provision.
	redactor := security.NewRedactor()
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	})
	logger := slog.New(security.NewRedactingHandler(textHandler, redactor))

	dataDir := params.DataDir
	if dataDir == "" {
		if cfg.DataDir != "" {
			dataDir = cfg.DataDir
		} else {
			dataDir = DefaultDataDir()
		}
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	tracer, shutdownTracer, err := observability.NewTracer(context.Background(), observability.TraceConfig{
		ServiceName:    "coda",
		ServiceVersion: params.Version,
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:       os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") != "",
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("trace exporter shutdown failed", "error", err)
		}
	}()
	appCtx := core.NewAppContext(logger, dataDir)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService("config.path", cfgPath)
	appCtx.RegisterService("security.redactor", redactor)
	appCtx.RegisterService("observability.metrics", metrics)
	appCtx.RegisterService("observability.tracer", tracer)

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		return err
	}

	// Wire the agent stack between LoadModules and Start: the LLM
	// gateway wraps the provider module's client, and the memory
	// manager, skill registry, recovery handler, and orchestrator are
	// registered for the HTTP gateway to discover.
	wired, err := wireAgent(application, appCtx, cfg, dataDir, logger, metrics)
	if err != nil {
		return err
	}

	// Build and register the reload handler before Start so modules
	// can discover it.
	handler := reload.NewHandler(application, logger, dataDir)
	handler.OnConfig = func(cfg *config.Config) {
		wired.Orchestrator.SetDemoMode(cfg.Agent.DemoMode)
	}
	appCtx.RegisterService("reload.handler", handler)

	if err := application.Start(); err != nil {
		return err
	}

	// --- signal handling ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	// --- config file watcher ---
	watcher := reload.NewWatcher(reload.WatcherConfig{
		ConfigPath: cfgPath,
	})
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	watcher.Start(watchCtx)
	defer watcher.Stop()

	shutdown := func() {
		if err := wired.Memory.Snapshot(wired.SnapshotDir); err != nil {
			logger.Warn("final session snapshot failed", "error", err)
		}
		application.Stop()
		logger.Info("shutdown complete")
	}

	// --- main event loop ---
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("SIGHUP received, reloading configuration")
				if err := handler.HandleReload(watchCtx, cfgPath); err != nil {
					logger.Error("reload failed", "error", err)
				}
			default:
				logger.Info("shutdown signal received", "signal", sig.String())
				shutdown()
				return nil
			}
		case evt := <-watcher.Events():
			logger.Info("config file changed, reloading", "path", evt.ConfigPath)
			if err := handler.HandleReload(watchCtx, cfgPath); err != nil {
				logger.Error("reload failed", "error", err)
			}
		}
	}
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/coda/coda.yaml → ~/.config/coda/coda.yaml → ./coda.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "coda", "coda.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "coda", "coda.yaml"))
	}

	candidates = append(candidates, "coda.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/coda if set, otherwise ~/.local/share/coda.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "coda")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "coda")
}
