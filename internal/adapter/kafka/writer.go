// Package kafka publishes readings to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/wh2900-relay/internal/domain"
)

// Settings are the keys of a kafka target table.
type Settings struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// Validate reports missing settings.
func (s Settings) Validate() error {
	if len(s.Brokers) == 0 {
		return errors.New("brokers is required")
	}
	if s.Topic == "" {
		return errors.New("topic is required")
	}
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes every reading of a run, keyed by capture filename.
type Writer struct {
	name   string
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(name string, s Settings, timeout time.Duration, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(s.Brokers...),
		Topic:                  s.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: true,
	}
	return &Writer{name: name, writer: w, logger: logger}
}

func (w *Writer) Name() string      { return w.name }
func (w *Writer) Mode() domain.Mode { return domain.ModeBatch }

// Send publishes readings in a single WriteMessages call.
func (w *Writer) Send(ctx context.Context, readings []domain.Reading) (domain.Delivery, error) {
	if len(readings) == 0 {
		return domain.Delivery{Message: "nothing to publish"}, nil
	}
	msgs := make([]kafkago.Message, len(readings))
	for i := range readings {
		msg, err := serializeToMessage(readings[i])
		if err != nil {
			return domain.Delivery{}, err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return domain.Delivery{}, fmt.Errorf("publish %d readings: %w", len(msgs), err)
	}
	w.logger.Debug("readings published", "sink", w.name, "count", len(msgs))
	return domain.Delivery{Processed: len(msgs), Message: fmt.Sprintf("%d published", len(msgs))}, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Reading into a Kafka message.
func serializeToMessage(r domain.Reading) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reading: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "measured_at", Value: []byte(r.MeasuredAt.UTC().Format(time.RFC3339))},
	}
	if r.Variant != nil {
		headers = append(headers, kafkago.Header{Key: "packet_type", Value: []byte(r.Variant.String())})
	}
	return kafkago.Message{
		Key:     []byte(r.Filename),
		Value:   data,
		Time:    r.MeasuredAt,
		Headers: headers,
	}, nil
}
