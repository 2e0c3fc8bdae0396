// Package relay implements the relay.chat module, which connects a chat
// channel to a language model: every text message becomes a model turn and
// the reply goes back through the delivery pipeline.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/gneuro/tgrelay/internal/channel"
	"github.com/gneuro/tgrelay/internal/core"
	"github.com/gneuro/tgrelay/internal/cron"
	"github.com/gneuro/tgrelay/internal/delivery"
	"github.com/gneuro/tgrelay/internal/provider"
	"github.com/gneuro/tgrelay/internal/session"
	"github.com/gneuro/tgrelay/internal/telemetry"
	"github.com/gneuro/tgrelay/pkg/message"
)

// ModuleID is the relay module identifier.
const ModuleID = "relay.chat"

// SessionsService is the service registry key of the session store.
const SessionsService = "relay.sessions"

func init() {
	core.RegisterModule(&Relay{})
}

var (
	_ core.Configurable = (*Relay)(nil)
	_ core.Provisioner  = (*Relay)(nil)
	_ core.Validator    = (*Relay)(nil)
	_ core.Reloader     = (*Relay)(nil)
)

// state is the part of the relay swapped atomically on reload.
type state struct {
	config    Config
	deliverer *delivery.Deliverer
}

// Relay is the relay.chat module.
type Relay struct {
	config Config
	logger *slog.Logger

	channel   channel.Channel
	provider  provider.Provider
	sessions  *session.Store
	recorder  delivery.Recorder
	delivery  *delivery.Metrics
	metrics   *metrics
	state     atomic.Pointer[state]
	scheduler *cron.Scheduler
}

// ModuleInfo implements core.Module.
func (r *Relay) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Relay{} },
	}
}

// Configure implements core.Configurable.
func (r *Relay) Configure(node *yaml.Node) error {
	if err := node.Decode(&r.config); err != nil {
		return fmt.Errorf("%s: decode config: %w", ModuleID, err)
	}
	r.config.defaults()
	return nil
}

// Provision implements core.Provisioner. It resolves the channel and
// provider services, builds the session store and delivery pipeline, and
// installs itself as the channel's inbox.
func (r *Relay) Provision(ctx *core.AppContext) error {
	r.logger = ctx.Logger

	ch, ok := core.Service[channel.Channel](ctx, r.config.Channel)
	if !ok {
		return fmt.Errorf("%s: channel service %q not found", ModuleID, r.config.Channel)
	}
	p, ok := core.Service[provider.Provider](ctx, r.config.Provider)
	if !ok {
		return fmt.Errorf("%s: provider service %q not found", ModuleID, r.config.Provider)
	}
	r.channel = ch
	r.provider = p

	if reg, ok := core.Service[prometheus.Registerer](ctx, telemetry.RegistryService); ok {
		r.delivery = delivery.NewMetrics(reg)
		r.metrics = newMetrics(reg)
	}
	if rec, ok := core.Service[delivery.Recorder](ctx, delivery.RecorderService); ok {
		r.recorder = rec
	}

	r.sessions = session.NewStore(p, sessionOptions(r.config))
	ctx.RegisterService(SessionsService, r.sessions)

	st, err := r.buildState(r.config)
	if err != nil {
		return err
	}
	r.state.Store(st)

	if sched, ok := core.Service[*cron.Scheduler](ctx, cron.ServiceName); ok && r.config.IdleTTL > 0 {
		r.scheduler = sched
		if err := sched.RegisterJob(&cron.SessionPruneJob{
			Store:        r.sessions,
			MaxIdle:      r.config.IdleTTL,
			Logger:       r.logger,
			ScheduleExpr: r.config.PruneSchedule,
		}); err != nil {
			return fmt.Errorf("%s: %w", ModuleID, err)
		}
	}

	ch.SetInbox(r.Handle)
	r.logger.Info("relay provisioned",
		"channel", r.config.Channel,
		"provider", r.config.Provider,
		"model", p.ModelName(),
	)
	return nil
}

// Validate implements core.Validator.
func (r *Relay) Validate() error {
	return r.config.validate()
}

// Reload implements core.Reloader. Texts, history limits and delivery
// limits take effect for the next message; the channel and provider
// bindings stay as provisioned.
func (r *Relay) Reload(ctx *core.AppContext) error {
	var cfg Config
	if node, ok := ctx.ModuleConfig(ModuleID); ok {
		if err := node.Decode(&cfg); err != nil {
			return fmt.Errorf("%s: decode config: %w", ModuleID, err)
		}
	}
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return err
	}
	if cfg.Channel != r.config.Channel || cfg.Provider != r.config.Provider {
		r.logger.Warn("relay: channel/provider changes need a restart",
			"channel", cfg.Channel, "provider", cfg.Provider)
	}

	st, err := r.buildState(cfg)
	if err != nil {
		return err
	}
	r.sessions.SetOptions(sessionOptions(cfg))
	r.state.Store(st)
	r.logger.Info("relay configuration reloaded")
	return nil
}

func (r *Relay) buildState(cfg Config) (*state, error) {
	d, err := delivery.NewDeliverer(delivery.Config{
		Transport: r.channel,
		Limits:    cfg.Limits,
		Logger:    r.logger,
		Metrics:   r.delivery,
		Recorder:  r.recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ModuleID, err)
	}
	return &state{config: cfg, deliverer: d}, nil
}

func sessionOptions(cfg Config) session.Options {
	return session.Options{
		SystemPrompt: cfg.SystemPrompt,
		MaxHistory:   cfg.MaxHistory,
	}
}

// Sessions returns the conversation store.
func (r *Relay) Sessions() *session.Store {
	return r.sessions
}

// Handle is the channel inbox. Messages for one chat are handled one at a
// time, in arrival order.
func (r *Relay) Handle(ctx context.Context, msg message.InboundMessage) error {
	unlock := r.sessions.Lock(msg.Chat.ID)
	defer unlock()

	st := r.state.Load()

	if name, _, ok := msg.Command(); ok && name == "start" {
		r.metrics.message("start")
		return r.start(ctx, st, msg)
	}
	if strings.TrimSpace(msg.Text) == "" {
		r.metrics.message("ignored")
		return nil
	}
	r.metrics.message("text")
	return r.reply(ctx, st, msg)
}

// start resets the conversation and greets the user.
func (r *Relay) start(ctx context.Context, st *state, msg message.InboundMessage) error {
	if r.sessions.Reset(msg.Chat.ID) {
		r.logger.Info("session reset", "chat_id", msg.Chat.ID)
	}
	sess, _ := r.sessions.GetOrCreate(msg.Chat.ID)
	r.logger.Debug("session created", "chat_id", msg.Chat.ID, "session_id", sess.ID)

	res := st.deliverer.Sender().Send(ctx, delivery.Segment{
		ChatID:  msg.Chat.ID,
		Text:    st.config.Welcome,
		ReplyTo: msg.ID,
	})
	if !res.Outcome.Delivered() {
		return fmt.Errorf("relay: welcome to chat %d: %w", msg.Chat.ID, res.Err)
	}
	return nil
}

// reply forwards the message to the model and delivers the answer. A
// failed model call is answered with the apology.
func (r *Relay) reply(ctx context.Context, st *state, msg message.InboundMessage) error {
	chatID := msg.Chat.ID

	if err := r.channel.SendTyping(ctx, chatID); err != nil {
		r.logger.Debug("typing indicator failed", "chat_id", chatID, "error", err)
	}

	sess, _ := r.sessions.GetOrCreate(chatID)

	callCtx, cancel := context.WithTimeout(ctx, st.config.ReplyTimeout)
	started := time.Now()
	text, err := sess.Send(callCtx, msg.Text)
	cancel()
	r.metrics.latency(time.Since(started).Seconds())

	if err != nil {
		r.metrics.backendError()
		r.logger.Error("model call failed",
			"chat_id", chatID,
			"retryable", provider.IsRetryable(err),
			"error", err,
		)
		return r.apologize(ctx, st, msg, err)
	}

	report := st.deliverer.Deliver(ctx, chatID, text, msg.ID)
	if report.Segments == 0 {
		r.logger.Warn("model returned an empty reply", "chat_id", chatID)
		return nil
	}
	if report.Final() == delivery.OutcomeFailed || report.Aborted {
		return fmt.Errorf("relay: reply to chat %d stopped after %d of %d segments: %w",
			chatID, report.Attempted(), report.Segments, report.Err)
	}
	return nil
}

func (r *Relay) apologize(ctx context.Context, st *state, msg message.InboundMessage, cause error) error {
	res := st.deliverer.Sender().Send(ctx, delivery.Segment{
		ChatID:  msg.Chat.ID,
		Text:    st.config.Apology,
		ReplyTo: msg.ID,
		Plain:   true,
	})
	if !res.Outcome.Delivered() {
		return fmt.Errorf("relay: apology to chat %d: %w", msg.Chat.ID, errors.Join(cause, res.Err))
	}
	return nil
}
