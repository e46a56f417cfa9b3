// Package pipeline runs one relay pass over the capture backlog: ingest,
// rain correction, dispatch, retention.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wh2900-relay/internal/domain"
	"github.com/couchcryptid/wh2900-relay/internal/ingest"
	"github.com/couchcryptid/wh2900-relay/internal/observability"
	"github.com/couchcryptid/wh2900-relay/internal/rainstate"
)

// Ingester turns one capture file into a reading, or nil when unusable.
type Ingester interface {
	Ingest(path string) *domain.Reading
}

// Dispatcher delivers readings to every sink.
type Dispatcher interface {
	Dispatch(ctx context.Context, readings []domain.Reading) []domain.Outcome
}

// RainTracker corrects the rain accumulator against persisted state.
type RainTracker interface {
	Correct(candidate float64) (delta float64, valid bool, err error)
	Close() error
}

// RainOpener acquires exclusive use of the rain state for one run.
type RainOpener func(ctx context.Context) (RainTracker, error)

// FileRainState opens the rain state at path, waiting at most lockTimeout
// for a concurrent run to release it.
func FileRainState(path string, clock clockwork.Clock, lockTimeout time.Duration) RainOpener {
	return func(ctx context.Context) (RainTracker, error) {
		ctx, cancel := context.WithTimeout(ctx, lockTimeout)
		defer cancel()
		t, err := rainstate.Open(ctx, path, clock)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// Options configures a Pipeline.
type Options struct {
	CaptureDir     string
	CapturePattern string
	RainThreshold  float64
	Policy         domain.RetentionPolicy
}

// Summary reports what one run did.
type Summary struct {
	Files       int
	Records     int
	Skipped     int
	Outcomes    []domain.Outcome
	Deleted     int
	Interrupted bool
}

// Pipeline orchestrates one relay run.
type Pipeline struct {
	opts       Options
	ingester   Ingester
	dispatcher Dispatcher
	rain       RainOpener
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Pipeline with the given stages and observability.
func New(opts Options, in Ingester, d Dispatcher, rain RainOpener, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.RainThreshold <= 0 {
		opts.RainThreshold = domain.RainAccumulatorThreshold
	}
	return &Pipeline{
		opts:       opts,
		ingester:   in,
		dispatcher: d,
		rain:       rain,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run processes the current backlog once. Only a failure to list the capture
// directory is returned as an error; everything else is logged and reflected
// in the summary. Files are never deleted once ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := p.clock.Now()
	defer func() {
		p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
		p.metrics.LastRunTimestamp.Set(float64(p.clock.Now().Unix()))
	}()

	files, err := ingest.Discover(p.opts.CaptureDir, p.opts.CapturePattern)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Files: len(files)}
	if len(files) == 0 {
		p.logger.Info("no capture files", "dir", p.opts.CaptureDir)
		return sum, nil
	}
	p.logger.Info("processing capture files", "count", len(files))

	readings := make([]domain.Reading, 0, len(files))
	for _, f := range files {
		if ctx.Err() != nil {
			sum.Interrupted = true
			p.logger.Warn("run interrupted during ingestion", "error", ctx.Err())
			return sum, nil
		}
		if r := p.ingester.Ingest(f); r != nil {
			readings = append(readings, *r)
		}
	}
	sum.Records = len(readings)
	sum.Skipped = len(files) - len(readings)
	p.logger.Info("capture files ingested", "records", sum.Records, "skipped", sum.Skipped)

	if len(readings) == 0 {
		return sum, nil
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].MeasuredAt.Before(readings[j].MeasuredAt)
	})

	p.correctRain(ctx, readings)

	sum.Outcomes = p.dispatcher.Dispatch(ctx, readings)

	if ctx.Err() != nil {
		sum.Interrupted = true
		p.logger.Warn("run interrupted, keeping capture files", "error", ctx.Err())
		return sum, nil
	}

	if !domain.ShouldDelete(sum.Outcomes, p.opts.Policy) {
		p.logger.Warn("keeping capture files", "policy", string(p.opts.Policy), "records", len(readings))
		return sum, nil
	}
	sum.Deleted = p.deleteFiles(readings)
	p.logger.Info("capture files deleted", "count", sum.Deleted)
	return sum, nil
}

// correctRain replaces accumulator-valued rain fields with the increment since
// the persisted baseline, or zero when no valid increment is available.
func (p *Pipeline) correctRain(ctx context.Context, readings []domain.Reading) {
	candidate := -1
	for i := len(readings) - 1; i >= 0; i-- {
		if readings[i].LooksLikeAccumulator(p.opts.RainThreshold) {
			candidate = i
			break
		}
	}
	if candidate < 0 {
		return
	}

	value := *readings[candidate].RainMM
	delta, result := p.rainDelta(ctx, value)
	p.metrics.RainCorrections.WithLabelValues(result).Inc()

	n := 0
	for i := range readings {
		if readings[i].LooksLikeAccumulator(p.opts.RainThreshold) {
			d := delta
			readings[i].RainMM = &d
			n++
		}
	}
	p.logger.Info("rain accumulator corrected",
		"accumulator_mm", value,
		"delta_mm", delta,
		"result", result,
		"records", n,
	)
}

func (p *Pipeline) rainDelta(ctx context.Context, value float64) (float64, string) {
	tracker, err := p.rain(ctx)
	if err != nil {
		p.logger.Error("rain state unavailable, zeroing accumulator values", "error", err)
		return 0, "error"
	}
	defer func() {
		if err := tracker.Close(); err != nil {
			p.logger.Warn("release rain state", "error", err)
		}
	}()

	delta, valid, err := tracker.Correct(value)
	if err != nil {
		p.logger.Error("rain state not saved", "error", err)
	}
	if !valid {
		p.logger.Warn("rain delta rejected", "accumulator_mm", value)
		return 0, "invalid"
	}
	return delta, "valid"
}

func (p *Pipeline) deleteFiles(readings []domain.Reading) int {
	deleted := 0
	for _, r := range readings {
		if err := os.Remove(r.SourcePath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			p.logger.Error("delete capture file", "file", r.SourcePath, "error", err)
			continue
		}
		deleted++
	}
	p.metrics.FilesDeleted.Add(float64(deleted))
	return deleted
}
