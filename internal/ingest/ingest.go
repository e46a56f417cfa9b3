// Package ingest turns capture files written by the radio decoder into
// normalized readings.
package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/wh2900-relay/internal/domain"
	"github.com/couchcryptid/wh2900-relay/internal/observability"
)

// Ingester reads and normalizes capture files. A file that cannot be used is
// logged and skipped, never returned as an error.
type Ingester struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Ingester.
func New(logger *slog.Logger, metrics *observability.Metrics) *Ingester {
	return &Ingester{logger: logger, metrics: metrics}
}

// Discover lists the capture files in dir matching pattern, in name order.
// A missing directory yields no files.
func Discover(dir, pattern string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("discover captures: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Ingest reads one capture file. It returns nil when the file has no usable
// reading.
func (in *Ingester) Ingest(path string) *domain.Reading {
	r, err := Read(path)
	if err != nil {
		in.logger.Warn("skipping capture file", "file", path, "error", err)
		in.metrics.CaptureErrors.Inc()
		return nil
	}

	if r.UnknownVariant {
		in.logger.Warn("unknown packet variant, decoded common fields only",
			"file", path,
			"variant", r.Variant.String(),
			"payload", r.RawData,
		)
		in.metrics.UnknownVariants.Inc()
	}

	in.logger.Debug("capture ingested",
		"file", path,
		"measured_at", r.MeasuredAt,
		"has_values", r.HasValues(),
	)
	in.metrics.CapturesIngested.Inc()
	return r
}

// Read parses and decodes one capture file.
func Read(path string) (*domain.Reading, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}

	c, err := domain.ParseCapture(data)
	if err != nil {
		return nil, err
	}

	at, err := c.MeasuredAt()
	if err != nil {
		return nil, err
	}

	m, err := domain.Decode(c)
	if err != nil {
		return nil, err
	}

	r := &domain.Reading{
		Measurement: m,
		SourcePath:  path,
		Filename:    filepath.Base(path),
		MeasuredAt:  at,
		RSSI:        c.RSSI,
		RawEnvelope: data,
	}
	if !c.PreDecoded() {
		r.RawData = c.Payload()
	}
	return r, nil
}
