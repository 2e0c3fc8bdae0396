package telegram

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/gneuro/tgrelay/internal/core"
	"github.com/gneuro/tgrelay/internal/gateway"
	"github.com/gneuro/tgrelay/pkg/message"
)

func configure(t *testing.T, tg *Telegram, src string) {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}
	if err := tg.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure() error: %v", err)
	}
}

func TestModuleRegistered(t *testing.T) {
	t.Parallel()

	info, ok := core.GetModule("channel.telegram")
	if !ok {
		t.Fatal("channel.telegram module not registered")
	}
	if _, ok := info.New().(*Telegram); !ok {
		t.Errorf("New() returned %T, want *Telegram", info.New())
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	tg := &Telegram{}
	configure(t, tg, `token: "`+testToken+`"
public_url: "https://bot.example.com/"`)

	if tg.config.Mode != modeWebhook {
		t.Errorf("Mode = %q, want webhook", tg.config.Mode)
	}
	if tg.config.APIURL != "https://api.telegram.org" {
		t.Errorf("APIURL = %q", tg.config.APIURL)
	}
	if got := tg.config.webhookURL(); got != "https://bot.example.com/webhooks/telegram" {
		t.Errorf("webhookURL() = %q", got)
	}
	if err := tg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing token", Config{Mode: modePolling}, "token is required"},
		{"bad token", Config{Token: "nope", Mode: modePolling}, "token format invalid"},
		{"bad mode", Config{Token: testToken, Mode: "carrier-pigeon"}, "mode must be one of"},
		{"webhook without url", Config{Token: testToken, Mode: modeWebhook}, "public_url is required"},
		{"bad api url", Config{Token: testToken, Mode: modePolling, APIURL: "not-a-url"}, "api_url must be a valid URL"},
		{"polling timeout", Config{Token: testToken, Mode: modePolling, PollingTimeout: 60}, "polling_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			cfg.defaults()
			err := cfg.validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLifecycle_Polling(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI(t, map[string]func(http.ResponseWriter, []byte){
		"getMe":      okMe(t),
		"getUpdates": oneUpdate(t, 42),
	})

	tg := &Telegram{}
	configure(t, tg, `
token: "`+testToken+`"
mode: polling
polling_timeout: 1
allow_users: [42]
api_url: "`+api.srv.URL+`"
`)

	appCtx := core.NewAppContext(discardLogger(), t.TempDir())
	if err := tg.Provision(appCtx); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if err := tg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if svc, ok := core.Service[*Telegram](appCtx, ServiceName); !ok || svc != tg {
		t.Error("module should register itself as a service")
	}

	if err := tg.Start(); err == nil {
		t.Fatal("Start() without an inbox should fail")
	}

	var mu sync.Mutex
	var inbox []message.InboundMessage
	tg.SetInbox(func(_ context.Context, msg message.InboundMessage) error {
		mu.Lock()
		inbox = append(inbox, msg)
		mu.Unlock()
		return nil
	})

	if err := tg.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(inbox) == 1
	})

	if tg.Bot() == nil || tg.Bot().Username != "relay_bot" {
		t.Errorf("Bot() = %+v", tg.Bot())
	}
	if api.count("setMyCommands") != 1 {
		t.Error("Start should register the command menu")
	}
	if api.count("deleteWebhook") != 1 {
		t.Error("polling mode should clear any webhook first")
	}

	if err := tg.SendTyping(context.Background(), 42); err != nil {
		t.Fatalf("SendTyping() error: %v", err)
	}
	if err := tg.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
}

func TestLifecycle_Webhook(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI(t, map[string]func(http.ResponseWriter, []byte){"getMe": okMe(t)})

	tg := &Telegram{}
	configure(t, tg, `
token: "`+testToken+`"
public_url: "https://bot.example.com"
webhook_secret: "s3cret"
api_url: "`+api.srv.URL+`"
`)

	appCtx := core.NewAppContext(discardLogger(), t.TempDir())
	dispatcher := gateway.NewWebhookDispatcher(discardLogger(), nil)
	appCtx.RegisterService(gateway.DispatcherService, dispatcher)

	if err := tg.Provision(appCtx); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if err := tg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	var got []message.InboundMessage
	tg.SetInbox(func(_ context.Context, msg message.InboundMessage) error {
		got = append(got, msg)
		return nil
	})
	if err := tg.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if !strings.Contains(string(api.bodies("setWebhook")[0]), `"url":"https://bot.example.com/webhooks/telegram"`) {
		t.Errorf("setWebhook body = %s", api.bodies("setWebhook")[0])
	}
	if !dispatcher.Has(webhookSource) {
		t.Fatal("receiver should be registered with the dispatcher")
	}

	if err := tg.webhookReceiver.HandleWebhook(context.Background(), webhookSource,
		updateBody(t, 9, 9, "hi"), secretHeaders("s3cret")); err != nil {
		t.Fatalf("HandleWebhook() error: %v", err)
	}
	if len(got) != 1 || got[0].Text != "hi" {
		t.Errorf("inbox = %+v", got)
	}

	if err := tg.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	// One deleteWebhook before setWebhook, one on Stop.
	if n := api.count("deleteWebhook"); n != 2 {
		t.Errorf("deleteWebhook calls = %d, want 2", n)
	}
}

func TestStart_WebhookWithoutGateway(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI(t, map[string]func(http.ResponseWriter, []byte){"getMe": okMe(t)})
	tg := &Telegram{}
	configure(t, tg, `
token: "`+testToken+`"
public_url: "https://bot.example.com"
api_url: "`+api.srv.URL+`"
`)
	if err := tg.Provision(core.NewAppContext(discardLogger(), t.TempDir())); err != nil {
		t.Fatal(err)
	}
	tg.SetInbox(func(context.Context, message.InboundMessage) error { return nil })

	if err := tg.Start(); err == nil || !strings.Contains(err.Error(), "gateway.http") {
		t.Errorf("Start() error = %v, want missing gateway error", err)
	}
}
