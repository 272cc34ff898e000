// Package config handles YAML configuration loading, environment
// variable expansion, and structural validation for coda.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir is where coda keeps its state (snapshots, archive
	// database). Default: "./data".
	DataDir string `yaml:"data_dir,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "provider.ollama").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Agent holds orchestrator-level settings that are not tied to a
	// single module.
	Agent AgentSettings `yaml:"agent,omitempty"`
}

// AgentSettings configures the message-processing pipeline.
type AgentSettings struct {
	// RetryAttempts is the gateway retry budget per LLM call.
	RetryAttempts int `yaml:"retry_attempts,omitempty"`

	// RetryBaseDelay seeds the exponential backoff.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay,omitempty"`

	// CacheTTL bounds how long chat responses are reused.
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`

	// ContextWindow is the number of recent turns sent to the LLM.
	ContextWindow int `yaml:"context_window,omitempty"`

	// CompressionThreshold is the turn count that triggers session
	// compression.
	CompressionThreshold int `yaml:"compression_threshold,omitempty"`

	// SessionMaxAge is the inactivity age after which sessions are
	// swept.
	SessionMaxAge time.Duration `yaml:"session_max_age,omitempty"`

	// SnapshotInterval is how often sessions are written to disk.
	SnapshotInterval time.Duration `yaml:"snapshot_interval,omitempty"`

	// BreakerFailureThreshold is the number of consecutive failures
	// before a circuit breaker opens.
	BreakerFailureThreshold int `yaml:"breaker_failure_threshold,omitempty"`

	// BreakerTimeout is how long an open breaker waits before allowing
	// a half-open probe.
	BreakerTimeout time.Duration `yaml:"breaker_timeout,omitempty"`

	// BreakerSuccessThreshold is the number of half-open successes
	// required to close a breaker again.
	BreakerSuccessThreshold int `yaml:"breaker_success_threshold,omitempty"`

	// DemoMode forces canned responses without calling the backend.
	DemoMode bool `yaml:"demo_mode,omitempty"`

	// DisableChaining turns off follow-up skill chains.
	DisableChaining bool `yaml:"disable_chaining,omitempty"`
}
