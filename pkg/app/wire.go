package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/frejasky/coda/internal/agent"
	"github.com/frejasky/coda/internal/config"
	"github.com/frejasky/coda/internal/core"
	"github.com/frejasky/coda/internal/cron"
	"github.com/frejasky/coda/internal/llm"
	"github.com/frejasky/coda/internal/memory"
	"github.com/frejasky/coda/internal/observability"
	"github.com/frejasky/coda/internal/recovery"
	"github.com/frejasky/coda/internal/skill"
	"github.com/frejasky/coda/modules/memory/sqlite"
)

// healthProbeTimeout bounds the startup backend probe.
const healthProbeTimeout = 5 * time.Second

// Wired holds the agent components assembled outside the module system.
type Wired struct {
	Orchestrator *agent.Orchestrator
	Memory       *memory.Manager
	SnapshotDir  string
}

// schedulerModule adapts the cron scheduler to the module lifecycle so
// it starts after the configured modules and stops before them.
type schedulerModule struct {
	sched *cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron"}
}

func (m *schedulerModule) Start() error                  { return m.sched.Start() }
func (m *schedulerModule) Stop(ctx context.Context) error { return m.sched.Stop(ctx) }

// observedArchiver wraps the archive store so every run lands in the
// Prometheus counters.
type observedArchiver struct {
	store   *sqlite.ArchiveStore
	metrics *observability.Metrics
}

func (a *observedArchiver) ArchiveSessions(ctx context.Context) (int, error) {
	n, err := a.store.ArchiveSessions(ctx)
	a.metrics.RecordArchiveRun(err)
	return n, err
}

// wireAgent builds the agent stack around the loaded modules. Must be
// called after LoadModules and before Start.
func wireAgent(
	application *core.App,
	appCtx *core.AppContext,
	cfg *config.Config,
	dataDir string,
	logger *slog.Logger,
	metrics *observability.Metrics,
) (*Wired, error) {
	tracer := observability.NewNopTracer()
	if svc, ok := appCtx.Service("observability.tracer"); ok {
		if t, ok := svc.(*observability.Tracer); ok {
			tracer = t
		}
	}

	// Resolve the raw LLM client registered by the provider module.
	var raw llm.Client
	if svc, ok := appCtx.Service("llm.client"); ok {
		raw, _ = svc.(llm.Client)
	}

	demoMode := cfg.Agent.DemoMode
	var client llm.Client
	if raw == nil {
		logger.Warn("no LLM provider module loaded, forcing demo mode")
		demoMode = true
	} else {
		gw := llm.NewGateway(raw, llm.GatewayConfig{
			RetryAttempts:  cfg.Agent.RetryAttempts,
			RetryBaseDelay: cfg.Agent.RetryBaseDelay,
			CacheTTL:       cfg.Agent.CacheTTL,
		}, llm.WithLogger(logger), llm.WithMetricsSink(metrics), llm.WithTracer(tracer))
		client = gw

		// The gateway replaces the raw client for all consumers.
		appCtx.RegisterService("llm.client", gw)

		if !demoMode {
			ctx, cancel := context.WithTimeout(context.Background(), healthProbeTimeout)
			err := gw.HealthCheck(ctx)
			cancel()
			if err != nil {
				logger.Warn("LLM backend unreachable, starting in demo mode", "error", err)
				demoMode = true
			}
		}
	}

	// Conversation memory with hashed bag-of-words similarity.
	mem := memory.NewManager(memory.ManagerConfig{
		ContextWindow:        cfg.Agent.ContextWindow,
		CompressionThreshold: cfg.Agent.CompressionThreshold,
		MaxSessionAge:        cfg.Agent.SessionMaxAge,
	}, memory.WithLogger(logger), memory.WithVectorizer(memory.NewHashVectorizer(0)))

	snapshotDir := filepath.Join(dataDir, "sessions")
	if restored, err := mem.Restore(snapshotDir); err != nil {
		logger.Warn("session restore failed", "error", err)
	} else if restored > 0 {
		logger.Info("sessions restored from snapshots", "count", restored)
	}

	// Error handling and circuit breakers, feeding Prometheus.
	errHandler := recovery.NewHandler(
		recovery.WithLogger(logger),
		recovery.WithBreakerConfig(recovery.BreakerConfig{
			FailureThreshold: cfg.Agent.BreakerFailureThreshold,
			Timeout:          cfg.Agent.BreakerTimeout,
			SuccessThreshold: cfg.Agent.BreakerSuccessThreshold,
		}),
		recovery.WithErrorCallback(func(c recovery.Category, s recovery.Severity) {
			metrics.RecordError(string(c), string(s))
		}),
		recovery.WithBreakerCallback(func(service string, _, to recovery.BreakerState) {
			metrics.RecordBreakerTransition(service, to.String())
		}),
	)

	registry := skill.NewRegistry(skill.WithLogger(logger), skill.WithTracer(tracer))
	skill.RegisterBuiltins(registry, client)

	orch := agent.New(client, registry, mem, errHandler,
		agent.WithLogger(logger),
		agent.WithDemoMode(demoMode),
		agent.WithTracer(tracer),
		agent.WithChainingDisabled(cfg.Agent.DisableChaining),
	)

	appCtx.RegisterService("memory.manager", mem)
	appCtx.RegisterService("recovery.handler", errHandler)
	appCtx.RegisterService("skill.registry", registry)
	appCtx.RegisterService("agent.orchestrator", orch)

	// Periodic jobs: session snapshots, inactivity sweeps, and, when
	// the sqlite module is loaded, durable archiving.
	sched := cron.NewScheduler(logger)
	if err := sched.RegisterJob(&cron.SnapshotJob{
		Memory:       mem,
		Dir:          snapshotDir,
		Logger:       logger,
		ScheduleExpr: minuteSchedule(cfg.Agent.SnapshotInterval),
	}); err != nil {
		return nil, err
	}
	if err := sched.RegisterJob(&cron.SweepJob{
		Memory: mem,
		MaxAge: cfg.Agent.SessionMaxAge,
		Logger: logger,
	}); err != nil {
		return nil, err
	}

	if svc, ok := appCtx.Service("memory.archive"); ok {
		if store, ok := svc.(*sqlite.ArchiveStore); ok {
			store.SetSource(mem)
			if err := sched.RegisterJob(&cron.ArchiveJob{
				Store:  &observedArchiver{store: store, metrics: metrics},
				Logger: logger,
			}); err != nil {
				return nil, err
			}
			logger.Info("session archiving enabled")
		}
	}

	appCtx.RegisterService("cron.scheduler", sched)
	application.AppendModule(&schedulerModule{sched: sched})

	return &Wired{
		Orchestrator: orch,
		Memory:       mem,
		SnapshotDir:  snapshotDir,
	}, nil
}

// minuteSchedule converts a snapshot interval into a five-field cron
// expression. Intervals under a minute or unset fall back to the job
// default.
func minuteSchedule(interval time.Duration) string {
	if interval < time.Minute {
		return ""
	}
	minutes := int(interval.Minutes())
	if minutes > 59 {
		minutes = 59
	}
	return fmt.Sprintf("*/%d * * * *", minutes)
}
