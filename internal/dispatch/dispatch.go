// Package dispatch hands a run's readings to every configured sink and
// collects one outcome per sink.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wh2900-relay/internal/domain"
	"github.com/couchcryptid/wh2900-relay/internal/observability"
)

// MaxMessageLen bounds the diagnostic text carried by a failed outcome.
const MaxMessageLen = 100

// DefaultTimeout bounds a single Send call.
const DefaultTimeout = 30 * time.Second

// Target is a configured sink with its activation state.
type Target struct {
	Sink           domain.Sink
	Active         bool
	InactiveReason string
	// MinInterval is the shortest gap between two successful pushes.
	// Zero disables rate limiting.
	MinInterval time.Duration
}

type target struct {
	Target
	lastPush time.Time
}

// Dispatcher owns every target's runtime state for the life of the process.
type Dispatcher struct {
	targets   []*target
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	timeout   time.Duration
	pushState string
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the per-send timeout.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithPushStateFile persists last-push times across processes.
func WithPushStateFile(path string) Option {
	return func(disp *Dispatcher) { disp.pushState = path }
}

// New creates a Dispatcher over targets, in the given order.
func New(targets []Target, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		timeout: DefaultTimeout,
	}
	for _, t := range targets {
		d.targets = append(d.targets, &target{Target: t})
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ActiveCount returns the number of targets that will actually send.
func (d *Dispatcher) ActiveCount() int {
	n := 0
	for _, t := range d.targets {
		if t.Active {
			n++
		}
	}
	return n
}

// LastPush returns the last successful push time of the named sink.
func (d *Dispatcher) LastPush(name string) (time.Time, bool) {
	for _, t := range d.targets {
		if t.Sink.Name() == name {
			return t.lastPush, !t.lastPush.IsZero()
		}
	}
	return time.Time{}, false
}

// Dispatch sends readings to every target and returns one outcome per target.
// Readings must be in chronological order. A failing target never prevents
// the others from being attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, readings []domain.Reading) []domain.Outcome {
	outcomes := make([]domain.Outcome, 0, len(d.targets))
	for _, t := range d.targets {
		o := d.dispatchOne(ctx, t, readings)
		d.record(o)
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (d *Dispatcher) dispatchOne(ctx context.Context, t *target, readings []domain.Reading) domain.Outcome {
	name := t.Sink.Name()

	if !t.Active {
		reason := t.InactiveReason
		if reason == "" {
			reason = "inactive"
		}
		return skipped(name, reason)
	}
	if len(readings) == 0 {
		return skipped(name, "no readings")
	}

	now := d.clock.Now()
	if t.MinInterval > 0 && !t.lastPush.IsZero() {
		if elapsed := now.Sub(t.lastPush); elapsed < t.MinInterval {
			return skipped(name, fmt.Sprintf("rate limited, next push in %s", (t.MinInterval - elapsed).Round(time.Second)))
		}
	}

	batch := readings
	if t.Sink.Mode() == domain.ModePush {
		rep, ok := domain.Representative(readings)
		if !ok {
			return skipped(name, "no reading with temperature")
		}
		batch = []domain.Reading{rep}
	}

	start := d.clock.Now()
	delivery, err := d.send(ctx, t.Sink, batch)
	d.metrics.SinkDuration.WithLabelValues(name).Observe(d.clock.Since(start).Seconds())
	if err != nil {
		return domain.Outcome{Sink: name, Success: false, Message: Truncate(err.Error(), MaxMessageLen)}
	}

	t.lastPush = d.clock.Now()
	msg := delivery.Message
	if msg == "" {
		msg = "ok"
	}
	return domain.Outcome{Sink: name, Success: true, Message: msg, Processed: delivery.Processed}
}

// send isolates the sink call so a panicking adapter becomes a failed outcome.
func (d *Dispatcher) send(ctx context.Context, s domain.Sink, batch []domain.Reading) (delivery domain.Delivery, err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()

	delivery, err = s.Send(ctx, batch)
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", d.timeout, err)
	}
	return delivery, err
}

func (d *Dispatcher) record(o domain.Outcome) {
	result := "skipped"
	switch {
	case !o.Success:
		result = "failure"
		d.logger.Error("sink failed", "sink", o.Sink, "error", o.Message)
	case o.Processed > 0:
		result = "success"
		d.logger.Info("sink delivered", "sink", o.Sink, "processed", o.Processed, "message", o.Message)
	default:
		d.logger.Info("sink skipped", "sink", o.Sink, "reason", o.Message)
	}
	d.metrics.SinkOutcomes.WithLabelValues(o.Sink, result).Inc()
}

func skipped(name, reason string) domain.Outcome {
	return domain.Outcome{Sink: name, Success: true, Message: reason}
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
