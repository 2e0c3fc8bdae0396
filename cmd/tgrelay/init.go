package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initAnswers holds what the setup wizard asks for.
type initAnswers struct {
	Token      string
	Mode       string
	PublicURL  string
	Bind       string
	APIKey     string
	Model      string
	AllowUsers string
	Audit      bool
}

type starterConfig struct {
	Version string         `yaml:"version"`
	Modules starterModules `yaml:"modules"`
}

type starterModules struct {
	Telegram telegramSection `yaml:"channel.telegram"`
	Gemini   geminiSection   `yaml:"provider.gemini"`
	Gateway  gatewaySection  `yaml:"gateway.http"`
	Audit    *struct{}       `yaml:"audit.sqlite,omitempty"`
	Relay    struct{}        `yaml:"relay.chat"`
}

type telegramSection struct {
	Token         string  `yaml:"token"`
	Mode          string  `yaml:"mode"`
	PublicURL     string  `yaml:"public_url,omitempty"`
	WebhookSecret string  `yaml:"webhook_secret,omitempty"`
	AllowUsers    []int64 `yaml:"allow_users,omitempty"`
}

type geminiSection struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type gatewaySection struct {
	Bind string `yaml:"bind"`
}

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				dir, err := os.UserConfigDir()
				if err != nil {
					return err
				}
				output = filepath.Join(dir, "tgrelay", "tgrelay.yaml")
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			answers := initAnswers{Mode: "polling", Bind: "127.0.0.1:8080", Model: "gemini-2.5-flash", Audit: true}
			if err := setupForm(&answers).Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return errors.New("setup cancelled")
				}
				return err
			}

			raw, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := writeConfig(output, raw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\nRun: tgrelay config check %s\n", output, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the configuration")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func setupForm(a *initAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("From @BotFather. Leave empty to read TELEGRAM_BOT_TOKEN at start-up.").
				EchoMode(huh.EchoModePassword).
				Validate(validateToken).
				Value(&a.Token),
			huh.NewSelect[string]().
				Title("How should updates arrive?").
				Options(
					huh.NewOption("Long polling (no public address needed)", "polling"),
					huh.NewOption("Webhook (needs a public HTTPS URL)", "webhook"),
				).
				Value(&a.Mode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Public URL").
				Description("Telegram will post updates to <url>/webhooks/telegram.").
				Placeholder("https://bot.example.com").
				Validate(validatePublicURL).
				Value(&a.PublicURL),
		).WithHideFunc(func() bool { return a.Mode != "webhook" }),
		huh.NewGroup(
			huh.NewInput().
				Title("HTTP listen address").
				Description("Health, metrics, webhooks and the admin API.").
				Value(&a.Bind),
			huh.NewInput().
				Title("Gemini API key").
				Description("Leave empty to read GEMINI_API_KEY at start-up.").
				EchoMode(huh.EchoModePassword).
				Value(&a.APIKey),
			huh.NewInput().
				Title("Gemini model").
				Value(&a.Model),
			huh.NewInput().
				Title("Allowed Telegram user IDs").
				Description("Comma separated. Leave empty to answer everyone.").
				Validate(func(s string) error { _, err := parseIDs(s); return err }).
				Value(&a.AllowUsers),
			huh.NewConfirm().
				Title("Keep a delivery audit log?").
				Value(&a.Audit),
		),
	)
}

func validateToken(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if id, _, ok := strings.Cut(s, ":"); !ok || id == "" {
		return errors.New("expected <bot_id>:<hash>")
	}
	return nil
}

func validatePublicURL(s string) error {
	if !strings.HasPrefix(s, "https://") {
		return errors.New("webhooks need an https:// URL")
	}
	return nil
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q", field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// renderConfig turns wizard answers into a config file. Empty secrets
// become environment references.
func renderConfig(a initAnswers) ([]byte, error) {
	users, err := parseIDs(a.AllowUsers)
	if err != nil {
		return nil, err
	}
	cfg := starterConfig{
		Version: "1",
		Modules: starterModules{
			Telegram: telegramSection{
				Token:      orEnv(a.Token, "TELEGRAM_BOT_TOKEN"),
				Mode:       a.Mode,
				AllowUsers: users,
			},
			Gemini: geminiSection{
				APIKey: orEnv(a.APIKey, "GEMINI_API_KEY"),
				Model:  a.Model,
			},
			Gateway: gatewaySection{Bind: a.Bind},
		},
	}
	if a.Mode == "webhook" {
		cfg.Modules.Telegram.PublicURL = strings.TrimSpace(a.PublicURL)
		cfg.Modules.Telegram.WebhookSecret = "${TELEGRAM_WEBHOOK_SECRET:-}"
	}
	if a.Audit {
		cfg.Modules.Audit = &struct{}{}
	}
	return yaml.Marshal(cfg)
}

func orEnv(value, env string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return "${" + env + "}"
}

func writeConfig(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
