package delivery

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/gneuro/tgrelay/internal/delivery"

// maxAttempts bounds the transport calls made for a single segment.
const maxAttempts = 2

// Transport delivers one message to a chat. formatted enables the
// transport's rich-text parse mode; replyTo threads the message to an
// earlier one when non-zero. Failures should wrap ErrMalformedMarkup or
// ErrMessageTooLong when the transport can tell.
type Transport interface {
	Deliver(ctx context.Context, chatID int64, text string, formatted bool, replyTo int) error
}

// Segment is one unit handed to the Sender.
type Segment struct {
	ChatID int64
	Text   string

	// ReplyTo is the message to thread to; zero means none.
	ReplyTo int

	// Plain skips the formatted attempt.
	Plain bool
}

// Result describes how a segment was sent.
type Result struct {
	Outcome  Outcome
	Attempts int

	// Err is the last transport error, if any. A segment delivered through
	// a fallback still carries the error that caused the fallback.
	Err error
}

// Config configures a Sender or Deliverer.
type Config struct {
	Transport Transport
	Limits    Limits
	Logger    *slog.Logger
	Metrics   *Metrics

	// Recorder receives a Report after every batch. Optional.
	Recorder Recorder

	// Tracer defaults to the global otel tracer.
	Tracer trace.Tracer
}

// Sender delivers single segments with a formatting fallback.
type Sender struct {
	transport Transport
	limits    Limits
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

// NewSender creates a Sender. Zero limits are filled from DefaultLimits.
func NewSender(cfg Config) (*Sender, error) {
	if cfg.Transport == nil {
		return nil, errors.New("delivery: transport is required")
	}
	limits := cfg.Limits.WithDefaults()
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Sender{
		transport: cfg.Transport,
		limits:    limits,
		logger:    logger.With("component", "delivery"),
		metrics:   cfg.Metrics,
		tracer:    tracer,
	}, nil
}

// Limits returns the limits the sender was built with.
func (s *Sender) Limits() Limits {
	return s.limits
}

type sendState int

const (
	stateFormatted sendState = iota
	statePlain
	stateFallback
	stateTruncated
)

func (st sendState) mode() string {
	switch st {
	case stateFormatted:
		return "formatted"
	case stateTruncated:
		return "truncated"
	default:
		return "plain"
	}
}

// Send delivers seg. Markup the transport cannot parse is stripped and sent
// once more as plain text; a message the transport finds too long is
// stripped, truncated with the overflow notice and sent once, which ends
// the batch. Any other error fails the segment without retry.
func (s *Sender) Send(ctx context.Context, seg Segment) Result {
	ctx, span := s.tracer.Start(ctx, "delivery.Send", trace.WithAttributes(
		attribute.Int64("chat.id", seg.ChatID),
		attribute.Int("segment.runes", utf8.RuneCountInString(seg.Text)),
		attribute.Bool("segment.reply", seg.ReplyTo != 0),
	))
	defer span.End()

	state := stateFormatted
	if seg.Plain {
		state = statePlain
	}
	text := seg.Text

	var res Result
	for res.Attempts < maxAttempts {
		res.Attempts++
		err := s.transport.Deliver(ctx, seg.ChatID, text, state == stateFormatted, seg.ReplyTo)
		kind := Classify(err)
		s.metrics.attempt(state.mode(), kind, err)

		if err == nil {
			res.Outcome = state.outcome()
			break
		}
		res.Err = err

		next, retry := state.next(kind)
		if !retry {
			s.logger.Warn("delivery: send failed",
				"chat_id", seg.ChatID, "mode", state.mode(), "kind", kind.String(), "error", err)
			res.Outcome = OutcomeFailed
			break
		}

		switch next {
		case stateFallback:
			s.logger.Info("delivery: markup rejected, resending as plain text",
				"chat_id", seg.ChatID, "error", err)
			text = Strip(text)
		case stateTruncated:
			s.logger.Warn("delivery: message too long, truncating",
				"chat_id", seg.ChatID, "error", err)
			text = s.limits.truncate(text)
		}
		state = next
	}

	s.metrics.outcome(res.Outcome)
	span.SetAttributes(
		attribute.String("delivery.outcome", res.Outcome.String()),
		attribute.Int("delivery.attempts", res.Attempts),
	)
	if res.Outcome == OutcomeFailed {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "segment not delivered")
	}
	return res
}

func (st sendState) outcome() Outcome {
	switch st {
	case stateFormatted:
		return OutcomeFormatted
	case stateTruncated:
		return OutcomeTruncated
	default:
		return OutcomePlain
	}
}

// next returns the state to move to after a failure of the given kind, and
// false when the failure is final.
func (st sendState) next(kind ErrorKind) (sendState, bool) {
	switch st {
	case stateFormatted:
		switch kind {
		case KindMalformedMarkup:
			return stateFallback, true
		case KindMessageTooLong:
			return stateTruncated, true
		}
	case statePlain:
		if kind == KindMessageTooLong {
			return stateTruncated, true
		}
	}
	return st, false
}
