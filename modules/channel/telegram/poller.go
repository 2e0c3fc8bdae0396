package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gneuro/tgrelay/internal/channel"
)

const (
	maxConsecutivePollingErrors = 5
	errorPauseDuration          = 30 * time.Second
)

// Poller receives updates through getUpdates long polling.
type Poller struct {
	client      *Client
	inbox       channel.Inbox
	allowList   *channel.AllowList
	logger      *slog.Logger
	botUsername string
	channelName string
	config      Config

	// pause is the back-off after repeated failures; tests shorten it.
	pause time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewPoller creates a Poller.
func NewPoller(client *Client, inbox channel.Inbox, allowList *channel.AllowList, logger *slog.Logger, botUsername, channelName string, config Config) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		client:      client,
		inbox:       inbox,
		allowList:   allowList,
		logger:      logger,
		botUsername: botUsername,
		channelName: channelName,
		config:      config,
		pause:       errorPauseDuration,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Start launches the polling loop.
func (p *Poller) Start() {
	go p.loop()
}

// Stop ends the loop and waits for the update in progress to finish.
// It is safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(p.cancel)
	<-p.done
}

func (p *Poller) loop() {
	defer close(p.done)

	var offset, consecutiveErrors int

	for p.ctx.Err() == nil {
		updates, err := p.client.GetUpdates(p.ctx, GetUpdatesRequest{
			Offset:         offset,
			Timeout:        p.config.PollingTimeout,
			AllowedUpdates: p.config.AllowedUpdates,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			consecutiveErrors++
			p.logger.Error("polling getUpdates failed",
				"error", err,
				"consecutive_errors", consecutiveErrors,
			)
			if consecutiveErrors >= maxConsecutivePollingErrors {
				p.logger.Warn("polling paused after consecutive errors", "pause", p.pause)
				select {
				case <-p.ctx.Done():
					return
				case <-time.After(p.pause):
				}
				consecutiveErrors = 0
			}
			continue
		}
		consecutiveErrors = 0

		for i := range updates {
			offset = updates[i].UpdateID + 1
			p.handleUpdate(&updates[i])
		}
	}
}

// handleUpdate runs the inbox for one update. Updates for different chats
// are handled in arrival order; the relay serialises per chat anyway.
func (p *Poller) handleUpdate(update *Update) {
	msg, err := convertInbound(update, p.botUsername, p.channelName)
	if err != nil {
		p.logger.Debug("skipping update", "update_id", update.UpdateID, "reason", err)
		return
	}

	if !p.allowList.IsAllowed(msg) {
		p.logger.Debug("update denied by allow list",
			"update_id", update.UpdateID,
			"sender", msg.Sender.ID,
			"chat", msg.Chat.ID,
		)
		return
	}

	// Detached from the poll context so Stop lets the reply finish.
	if err := p.inbox(context.WithoutCancel(p.ctx), msg); err != nil {
		p.logger.Error("failed to deliver update to inbox",
			"update_id", update.UpdateID,
			"error", err,
		)
	}
}
