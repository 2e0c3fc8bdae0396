package delivery

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Report summarises the delivery of one reply.
type Report struct {
	ChatID int64

	// Segments is the number of segments the reply was split into.
	Segments int

	// Outcomes holds one entry per attempted segment, in order.
	Outcomes []Outcome

	// Aborted is true when a terminal outcome left segments unsent.
	Aborted bool

	// Err is the transport error that ended the batch, if any.
	Err error

	StartedAt time.Time
	Duration  time.Duration
}

// Attempted returns the number of segments handed to the sender.
func (r Report) Attempted() int {
	return len(r.Outcomes)
}

// Final returns the outcome of the last attempted segment, or
// OutcomeFailed when nothing was attempted.
func (r Report) Final() Outcome {
	if len(r.Outcomes) == 0 {
		return OutcomeFailed
	}
	return r.Outcomes[len(r.Outcomes)-1]
}

// RecorderService is the service registry key under which a Recorder is
// published.
const RecorderService = "delivery.recorder"

// Recorder persists delivery reports.
type Recorder interface {
	RecordDelivery(ctx context.Context, r Report) error
}

// Entry is a persisted delivery report.
type Entry struct {
	ID        string        `json:"id"`
	ChatID    int64         `json:"chat_id"`
	Segments  int           `json:"segments"`
	Attempted int           `json:"attempted"`
	Final     string        `json:"final"`
	Aborted   bool          `json:"aborted"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	CreatedAt time.Time     `json:"created_at"`
}

// History lists persisted deliveries, newest first.
type History interface {
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Deliverer sends a whole reply as an ordered batch of segments.
type Deliverer struct {
	sender   *Sender
	recorder Recorder
	now      func() time.Time
}

// NewDeliverer creates a Deliverer and its Sender from cfg.
func NewDeliverer(cfg Config) (*Deliverer, error) {
	s, err := NewSender(cfg)
	if err != nil {
		return nil, err
	}
	return &Deliverer{
		sender:   s,
		recorder: cfg.Recorder,
		now:      time.Now,
	}, nil
}

// Sender returns the underlying single-segment sender.
func (d *Deliverer) Sender() *Sender {
	return d.sender
}

// Deliver chunks text and sends the segments in order. Only the first
// segment is threaded to replyTo. The batch stops at the first terminal
// outcome; segments already sent stay sent.
func (d *Deliverer) Deliver(ctx context.Context, chatID int64, text string, replyTo int) Report {
	limits := d.sender.limits
	segments := Chunk(text, limits.SplitLength, limits.ContinuationMarker)

	ctx, span := d.sender.tracer.Start(ctx, "delivery.Deliver", trace.WithAttributes(
		attribute.Int64("chat.id", chatID),
		attribute.Int("delivery.segments", len(segments)),
	))
	defer span.End()

	report := Report{
		ChatID:    chatID,
		Segments:  len(segments),
		Outcomes:  make([]Outcome, 0, len(segments)),
		StartedAt: d.now(),
	}

	for i, part := range segments {
		seg := Segment{ChatID: chatID, Text: part}
		if i == 0 {
			seg.ReplyTo = replyTo
		}

		res := d.sender.Send(ctx, seg)
		report.Outcomes = append(report.Outcomes, res.Outcome)

		if res.Outcome.Terminal() {
			report.Err = res.Err
			report.Aborted = i < len(segments)-1
			if report.Aborted {
				d.sender.logger.Warn("delivery: batch aborted",
					"chat_id", chatID,
					"segment", i+1,
					"segments", len(segments),
					"outcome", res.Outcome.String())
			}
			break
		}
	}
	report.Duration = d.now().Sub(report.StartedAt)

	d.sender.metrics.batch(report)
	span.SetAttributes(
		attribute.Int("delivery.attempted", report.Attempted()),
		attribute.Bool("delivery.aborted", report.Aborted),
	)

	if d.recorder != nil && report.Segments > 0 {
		if err := d.recorder.RecordDelivery(ctx, report); err != nil {
			d.sender.logger.Error("delivery: recording report failed", "chat_id", chatID, "error", err)
		}
	}
	return report
}
