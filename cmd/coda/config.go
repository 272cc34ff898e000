package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/frejasky/coda/internal/config"
	"github.com/frejasky/coda/internal/core"
	"github.com/frejasky/coda/pkg/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configInitCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))
			appCtx := core.NewAppContext(logger, app.DefaultDataDir())
			appCtx = appCtx.WithModuleConfigs(cfg.Modules)

			application := core.NewApp(appCtx)
			ids := config.Resolve(cfg)
			if err := application.LoadModules(ids); err != nil {
				return err
			}
			defer application.Stop()

			fmt.Printf("Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	}
}

// initAnswers collects the interactive wizard's responses.
type initAnswers struct {
	BaseURL  string
	Model    string
	Bind     string
	Token    string
	DemoMode bool
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a starter configuration interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "coda.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			answers := initAnswers{
				BaseURL: "http://localhost:11434",
				Model:   "llama3.2",
				Bind:    "127.0.0.1:8080",
			}
			if err := initForm(&answers).Run(); err != nil {
				return err
			}

			raw, err := renderInitConfig(answers)
			if err != nil {
				return err
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(path, raw, 0o600); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", path)
			fmt.Println("Start with: coda start --config", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

func initForm(a *initAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Ollama base URL").
				Description("Where the Ollama server listens").
				Value(&a.BaseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Chat model").
				Description("Model name as known to Ollama").
				Value(&a.Model).
				Validate(nonEmpty("model")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("HTTP bind address").
				Description("host:port for the local API and chat socket").
				Value(&a.Bind).
				Validate(nonEmpty("bind address")),
			huh.NewInput().
				Title("Bearer token").
				Description("Leave empty to disable authentication").
				EchoMode(huh.EchoModePassword).
				Value(&a.Token),
			huh.NewConfirm().
				Title("Start in demo mode?").
				Description("Canned responses, no backend calls").
				Value(&a.DemoMode),
		),
	)
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	return nil
}

func nonEmpty(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// initConfig mirrors the config schema with only the fields the wizard
// fills, so the output stays small and ordered.
type initConfig struct {
	Version string         `yaml:"version"`
	Agent   initAgent      `yaml:"agent,omitempty"`
	Modules map[string]any `yaml:"modules"`
}

type initAgent struct {
	DemoMode bool `yaml:"demo_mode,omitempty"`
}

func renderInitConfig(a initAnswers) ([]byte, error) {
	gateway := map[string]any{"bind": a.Bind}
	if a.Token != "" {
		gateway["auth"] = map[string]any{"bearer_token": a.Token}
	}

	cfg := initConfig{
		Version: "1",
		Agent:   initAgent{DemoMode: a.DemoMode},
		Modules: map[string]any{
			"provider.ollama": map[string]any{
				"base_url": a.BaseURL,
				"model":    a.Model,
			},
			"gateway.http":  gateway,
			"memory.sqlite": map[string]any{},
		},
	}
	return yaml.Marshal(cfg)
}
