package main

import (
	"fmt"
	"os"

	"github.com/frejasky/coda/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts the application loop to the service manager's
// lifecycle. Stop relies on the manager delivering SIGTERM, which the
// run loop already handles.
type program struct {
	params app.RunParams
}

func (p *program) Start(_ service.Service) error {
	go func() {
		if err := app.Run(p.params); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error { return nil }

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage coda as a system service",
	}
	cmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(serviceControlCmd(action))
	}
	cmd.AddCommand(serviceRunCmd(), serviceStatusCmd())
	return cmd
}

func newService(cfgPath string) (service.Service, error) {
	arguments := []string{"service", "run"}
	if cfgPath != "" {
		arguments = append(arguments, "--config", cfgPath)
	}
	return service.New(&program{params: app.RunParams{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
	}}, &service.Config{
		Name:        "coda",
		DisplayName: "coda assistant",
		Description: "Self-hosted personal coding assistant",
		Arguments:   arguments,
	})
}

func serviceControlCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s the system service", action),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			svc, err := newService(cfgPath)
			if err != nil {
				return err
			}
			if err := service.Control(svc, action); err != nil {
				return fmt.Errorf("service %s: %w", action, err)
			}
			fmt.Printf("Service %s: done\n", action)
			return nil
		},
	}
}

// serviceRunCmd is invoked by the service manager, not by users.
func serviceRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "run",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			svc, err := newService(cfgPath)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
}

func serviceStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the system service status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			svc, err := newService(cfgPath)
			if err != nil {
				return err
			}
			status, err := svc.Status()
			if err != nil {
				return fmt.Errorf("service status: %w", err)
			}
			switch status {
			case service.StatusRunning:
				fmt.Println("running")
			case service.StatusStopped:
				fmt.Println("stopped")
			default:
				fmt.Println("unknown")
			}
			return nil
		},
	}
}
