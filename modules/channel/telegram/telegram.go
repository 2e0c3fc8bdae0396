package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/gneuro/tgrelay/internal/channel"
	"github.com/gneuro/tgrelay/internal/core"
	"github.com/gneuro/tgrelay/internal/delivery"
	"github.com/gneuro/tgrelay/internal/gateway"
	"github.com/gneuro/tgrelay/internal/security"
)

func init() {
	core.RegisterModule(&Telegram{})
}

// Compile-time interface guards.
var (
	_ channel.Channel    = (*Telegram)(nil)
	_ delivery.Transport = (*Telegram)(nil)
	_ core.Configurable  = (*Telegram)(nil)
	_ core.Provisioner   = (*Telegram)(nil)
	_ core.Validator     = (*Telegram)(nil)
	_ core.Starter       = (*Telegram)(nil)
	_ core.Stopper       = (*Telegram)(nil)
)

// ServiceName is the service registry key the module registers itself under.
const ServiceName = "channel.telegram"

// commands is the menu registered at start-up.
var commands = []BotCommand{
	{Command: "start", Description: "Start a new conversation"},
}

// Telegram is the channel.telegram module.
type Telegram struct {
	config    Config
	client    *Client
	logger    *slog.Logger
	allowList *channel.AllowList
	inbox     channel.Inbox
	botUser   *User
	appCtx    *core.AppContext

	// Set during Start depending on mode.
	poller          *Poller
	webhookReceiver *WebhookReceiver
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.telegram",
		New: func() core.Module { return &Telegram{} },
	}
}

// Configure implements core.Configurable.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.appCtx = ctx
	t.logger = ctx.Logger
	t.client = NewClient(t.config.Token, t.config.APIURL, t.config.RequestTimeout)
	t.allowList = channel.NewAllowList(t.config.AllowUsers, t.config.AllowChats)
	if r, ok := core.Service[*security.Redactor](ctx, security.RedactorService); ok {
		r.AddLiteral(t.config.Token)
		r.AddLiteral(t.config.WebhookSecret)
	}
	ctx.RegisterService(ServiceName, t)
	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	return t.config.validate()
}

// Start implements core.Starter. It checks the token with getMe, registers
// the command menu, then begins receiving updates in the configured mode.
func (t *Telegram) Start() error {
	if t.inbox == nil {
		return fmt.Errorf("telegram: %w", channel.ErrNoInbox)
	}
	ctx := context.Background()

	user, err := t.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.botUser = user
	t.logger.Info("telegram bot authenticated", "id", user.ID, "username", user.Username)

	if err := t.client.SetMyCommands(ctx, commands); err != nil {
		t.logger.Warn("telegram: setMyCommands failed", "error", err)
	}
	if t.allowList.IsOpen() {
		t.logger.Info("telegram allow list empty, bot answers everyone")
	}

	channelName := string(t.ModuleInfo().ID)

	switch t.config.Mode {
	case modePolling:
		// getUpdates is refused while a webhook is set.
		if err := t.client.DeleteWebhook(ctx, false); err != nil {
			return fmt.Errorf("telegram: deleteWebhook failed: %w", err)
		}
		t.poller = NewPoller(t.client, t.inbox, t.allowList, t.logger, user.Username, channelName, t.config)
		t.poller.Start()
		t.logger.Info("telegram polling started", "timeout", t.config.PollingTimeout)

	case modeWebhook:
		if t.config.WebhookSecret == "" {
			t.logger.Warn("telegram webhook running without a secret token; set webhook_secret in production")
		}
		t.webhookReceiver = NewWebhookReceiver(t.inbox, t.allowList, t.logger, user.Username, channelName, t.config.WebhookSecret)
		if err := t.registerWebhook(); err != nil {
			return err
		}
		if err := t.client.DeleteWebhook(ctx, false); err != nil {
			t.logger.Warn("telegram: deleteWebhook before setWebhook failed", "error", err)
		}
		url := t.config.webhookURL()
		if err := t.client.SetWebhook(ctx, SetWebhookRequest{
			URL:            url,
			SecretToken:    t.config.WebhookSecret,
			AllowedUpdates: t.config.AllowedUpdates,
		}); err != nil {
			return fmt.Errorf("telegram: setWebhook failed: %w", err)
		}
		t.logger.Info("telegram webhook configured", "url", url)
	}

	return nil
}

// registerWebhook attaches the receiver to the gateway's dispatcher.
func (t *Telegram) registerWebhook() error {
	dispatcher, ok := core.Service[*gateway.WebhookDispatcher](t.appCtx, gateway.DispatcherService)
	if !ok {
		return errors.New("telegram: webhook mode needs the gateway.http module")
	}
	dispatcher.Register(webhookSource, t.webhookReceiver)
	return nil
}

// Stop implements core.Stopper.
func (t *Telegram) Stop(ctx context.Context) error {
	t.logger.Info("telegram channel stopping")

	switch t.config.Mode {
	case modePolling:
		if t.poller != nil {
			t.poller.Stop()
		}
	case modeWebhook:
		if t.webhookReceiver == nil {
			return nil
		}
		if err := t.client.DeleteWebhook(ctx, false); err != nil {
			t.logger.Warn("telegram: failed to delete webhook on shutdown", "error", err)
		}
	}
	return nil
}

// SetInbox implements channel.Channel.
func (t *Telegram) SetInbox(fn channel.Inbox) {
	t.inbox = fn
}

// SendTyping implements channel.Channel.
func (t *Telegram) SendTyping(ctx context.Context, chatID int64) error {
	return t.client.SendChatAction(ctx, chatID, "typing")
}

// Bot returns the bot account resolved at Start, or nil before.
func (t *Telegram) Bot() *User {
	return t.botUser
}
