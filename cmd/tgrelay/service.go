package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/gneuro/tgrelay/pkg/app"
)

// program adapts app.Run to the service manager's start/stop callbacks.
type program struct {
	params app.RunParams

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		err := app.Run(ctx, p.params)
		done <- err
		if err != nil && ctx.Err() == nil {
			// Exit non-zero so the service manager restarts us.
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	return <-done
}

// serviceConfig describes the installed service. The config path is made
// absolute because service managers start processes in another directory.
func serviceConfig(flags runFlags) (*service.Config, error) {
	args := []string{"service", "run"}
	if flags.config != "" {
		abs, err := filepath.Abs(flags.config)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	if flags.dataDir != "" {
		abs, err := filepath.Abs(flags.dataDir)
		if err != nil {
			return nil, err
		}
		args = append(args, "--data-dir", abs)
	}
	if flags.logLevel != "" && flags.logLevel != "info" {
		args = append(args, "--log-level", flags.logLevel)
	}
	return &service.Config{
		Name:        "tgrelay",
		DisplayName: "tgrelay",
		Description: "Relays Telegram chats to a Gemini model.",
		Arguments:   args,
		Option: service.KeyValue{
			"UserService": true,
			"Restart":     "on-failure",
		},
	}, nil
}

func newService(flags runFlags) (service.Service, *program, error) {
	params, err := flags.params()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := serviceConfig(flags)
	if err != nil {
		return nil, nil, err
	}
	prg := &program{params: params}
	svc, err := service.New(prg, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("service: %w", err)
	}
	return svc, prg, nil
}

func serviceCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage tgrelay as an OS service",
	}
	flags.register(cmd.PersistentFlags())

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the tgrelay service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, _, err := newService(flags)
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run under the service manager",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, _, err := newService(flags)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	})
	return cmd
}
