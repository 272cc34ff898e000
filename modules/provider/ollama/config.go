package ollama

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the configuration for the Ollama provider.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	EmbedModel     string        `yaml:"embed_model"`
	KeepAlive      string        `yaml:"keep_alive"`
	Timeout        time.Duration `yaml:"timeout"`
	HealthTimeout  time.Duration `yaml:"health_timeout"`
}

// defaults sets default values for unset fields.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = "llama3.2"
	}
	if c.EmbedModel == "" {
		c.EmbedModel = "nomic-embed-text"
	}
	if c.KeepAlive == "" {
		c.KeepAlive = "5m"
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	if c.HealthTimeout == 0 {
		c.HealthTimeout = 2 * time.Second
	}
}

// validate returns an error if required fields are malformed.
func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("provider.ollama: base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider.ollama: base_url scheme must be http or https, got %q", u.Scheme)
	}
	if c.Model == "" {
		return fmt.Errorf("provider.ollama: model is required")
	}
	if c.Timeout < 0 || c.HealthTimeout < 0 {
		return fmt.Errorf("provider.ollama: timeouts must not be negative")
	}
	return nil
}
