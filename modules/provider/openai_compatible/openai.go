// Package openaicompat implements the provider.openai_compatible
// module, a client for any backend speaking the OpenAI chat completions
// interface (LM Studio, vLLM, LiteLLM, Groq, Mistral, and friends) via
// a configurable base_url.
package openaicompat

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/frejasky/coda/internal/core"
	"github.com/frejasky/coda/internal/llm"
	"github.com/frejasky/coda/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Compile-time interface guards.
var (
	_ llm.Client        = (*Provider)(nil)
	_ core.Module       = (*Provider)(nil)
	_ core.Configurable = (*Provider)(nil)
	_ core.Provisioner  = (*Provider)(nil)
	_ core.Validator    = (*Provider)(nil)
)

// Provider implements llm.Client against an OpenAI-compatible server.
type Provider struct {
	config Config
	apiKey string
	logger *slog.Logger
	client *http.Client
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai_compatible",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger

	p.apiKey = p.config.APIKey
	if p.apiKey == "" && p.config.APIKeyEnv != "" {
		p.apiKey = os.Getenv(p.config.APIKeyEnv)
	}

	// http.Client.Timeout is a hard deadline for the entire response
	// body, which would kill long-lived streams. Bound only the wait
	// for response headers; body reads are cancelled via context.
	p.client = &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: p.config.Timeout,
		},
	}

	if svc, ok := ctx.Service("security.redactor"); ok {
		if red, ok := svc.(*security.Redactor); ok {
			red.AddLiteral(p.apiKey)
		}
	}

	ctx.RegisterService("llm.client", p)

	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	if err := p.config.validate(); err != nil {
		return err
	}
	if p.apiKey == "" {
		p.logger.Warn("no API key configured, sending unauthenticated requests",
			"module", "provider.openai_compatible")
	}
	return nil
}
