package telegram

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gneuro/tgrelay/internal/config"
)

const (
	modeWebhook = "webhook"
	modePolling = "polling"

	// webhookSource is the dispatcher key, so updates arrive on
	// <public_url>/webhooks/telegram.
	webhookSource = "telegram"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Config holds the Telegram channel configuration.
type Config struct {
	Token          string        `yaml:"token" validate:"required"`
	Mode           string        `yaml:"mode" validate:"oneof=webhook polling"`
	PublicURL      string        `yaml:"public_url" validate:"required_if=Mode webhook,omitempty,url"`
	WebhookSecret  string        `yaml:"webhook_secret"`
	PollingTimeout int           `yaml:"polling_timeout" validate:"gte=0,lte=50"`
	AllowedUpdates []string      `yaml:"allowed_updates"`
	AllowUsers     []int64       `yaml:"allow_users"`
	AllowChats     []int64       `yaml:"allow_chats"`
	APIURL         string        `yaml:"api_url" validate:"required,url"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gte=0"`
}

func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = modeWebhook
	}
	if c.PollingTimeout == 0 {
		c.PollingTimeout = 30
	}
	if c.AllowedUpdates == nil {
		c.AllowedUpdates = []string{"message"}
	}
	if c.APIURL == "" {
		c.APIURL = "https://api.telegram.org"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
}

func (c *Config) validate() error {
	if err := config.ValidateStruct("channel.telegram", c); err != nil {
		return err
	}
	if !tokenPattern.MatchString(c.Token) {
		return fmt.Errorf("channel.telegram: token format invalid (expected <bot_id>:<hash>)")
	}
	// Long polls must outlive the server-side timeout.
	if c.Mode == modePolling && c.RequestTimeout <= time.Duration(c.PollingTimeout)*time.Second {
		return fmt.Errorf("channel.telegram: request_timeout %s must exceed polling_timeout %ds",
			c.RequestTimeout, c.PollingTimeout)
	}
	return nil
}

// webhookURL is the address registered with setWebhook.
func (c *Config) webhookURL() string {
	return strings.TrimRight(c.PublicURL, "/") + "/webhooks/" + webhookSource
}
