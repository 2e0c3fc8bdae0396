// Package main is the entry point for the tgrelay CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/gneuro/tgrelay/internal/core"
	"github.com/gneuro/tgrelay/internal/security"
	"github.com/gneuro/tgrelay/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tgrelay",
		Short:         "Relay Telegram chats to a Gemini model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), initCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tgrelay %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range core.GetModules() {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

// runFlags are shared by start and service run.
type runFlags struct {
	config   string
	dataDir  string
	logLevel string
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.config, "config", "c", "", "Path to configuration file")
	fs.StringVar(&f.dataDir, "data-dir", "", "Directory for persistent data")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func (f *runFlags) params() (app.RunParams, error) {
	level, err := app.ParseLogLevel(f.logLevel)
	if err != nil {
		return app.RunParams{}, err
	}
	return app.RunParams{
		ConfigPath: f.config,
		DataDir:    f.dataDir,
		LogLevel:   level,
		Version:    version,
		Commit:     commit,
		Date:       date,
	}, nil
}

func startCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start tgrelay with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := flags.params()
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), params)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var dataDir string
	check := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and provision its modules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configArg(args)
			if err != nil {
				return err
			}
			if dataDir == "" {
				dataDir = app.DefaultDataDir()
			}
			logger := app.NewLogger(cmd.ErrOrStderr(), slog.LevelWarn, security.NewRedactor())
			ids, err := app.Check(path, dataDir, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	}
	check.Flags().StringVar(&dataDir, "data-dir", "", "Directory for persistent data")

	show := &cobra.Command{
		Use:   "show [path]",
		Short: "Print the expanded configuration with secrets redacted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configArg(args)
			if err != nil {
				return err
			}
			cfg, err := app.LoadConfig(path)
			if err != nil {
				return err
			}
			out, err := redactedYAML(cfg.Version, cfg.Modules)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.AddCommand(check, show)
	return cmd
}

// configArg returns the explicit path argument or the resolved default.
func configArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	return app.ResolveConfigPath()
}

// redactedYAML renders the config with secret-looking values replaced.
func redactedYAML(version string, modules map[string]yaml.Node) ([]byte, error) {
	decoded := make(map[string]any, len(modules))
	for id, node := range modules {
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", id, err)
		}
		if v == nil {
			v = map[string]any{}
		}
		decoded[id] = v
	}
	security.NewRedactor().RedactMap(decoded)

	return yaml.Marshal(map[string]any{
		"version": version,
		"modules": decoded,
	})
}
