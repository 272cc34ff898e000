package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/frejasky/coda/internal/agent"
	"github.com/frejasky/coda/internal/core"
	"github.com/frejasky/coda/internal/cron"
	"github.com/frejasky/coda/internal/llm"
	"github.com/frejasky/coda/internal/memory"
	"github.com/frejasky/coda/internal/recovery"
	"github.com/frejasky/coda/internal/security"
	"github.com/frejasky/coda/internal/skill"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP gateway module. It exposes health, status, chat,
// and admin endpoints. It is a leaf module; nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	limiter   *security.RateLimiter
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	orchestrator *agent.Orchestrator
	sessions     *memory.Manager
	errors       *recovery.Handler
	skills       *skill.Registry
	client       llm.Client
	jobs         *cron.Scheduler
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = &Metrics{}
	g.limiter = security.NewRateLimiter(g.config.RateLimit)

	ctx.RegisterService("gateway.metrics", g.metrics)

	// Register configured credentials with the log redactor.
	if svc, ok := ctx.Service("security.redactor"); ok {
		if red, ok := svc.(*security.Redactor); ok {
			red.AddLiteral(g.config.Auth.BearerToken)
			red.AddLiteral(g.config.Auth.BasicPass)
		}
	}

	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the
// service registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	// Resolve optional services. Missing services degrade the
	// corresponding endpoints instead of failing startup.
	if svc, ok := g.appCtx.Service("agent.orchestrator"); ok {
		if o, ok := svc.(*agent.Orchestrator); ok {
			g.orchestrator = o
		}
	}
	if svc, ok := g.appCtx.Service("memory.manager"); ok {
		if m, ok := svc.(*memory.Manager); ok {
			g.sessions = m
		}
	}
	if svc, ok := g.appCtx.Service("recovery.handler"); ok {
		if h, ok := svc.(*recovery.Handler); ok {
			g.errors = h
		}
	}
	if svc, ok := g.appCtx.Service("skill.registry"); ok {
		if r, ok := svc.(*skill.Registry); ok {
			g.skills = r
		}
	}
	if svc, ok := g.appCtx.Service("llm.client"); ok {
		if c, ok := svc.(llm.Client); ok {
			g.client = c
		}
	}
	if svc, ok := g.appCtx.Service("cron.scheduler"); ok {
		if s, ok := svc.(*cron.Scheduler); ok {
			g.jobs = s
		}
	}

	g.startedAt = time.Now()

	mux := g.buildRouter()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      mux,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
