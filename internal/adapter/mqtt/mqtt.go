// Package mqtt publishes the representative reading to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wh2900-relay/internal/domain"
)

// DefaultTopic is used when the target does not name one.
const DefaultTopic = "weather/wh2900/reading"

// Publisher publishes payloads to a broker.
type Publisher interface {
	// Publish sends payload to topic and waits for the broker's acknowledgement
	// according to qos.
	Publish(topic string, qos byte, retained bool, payload []byte) error

	// Close disconnects from the broker.
	Close() error
}

// Dialer connects a Publisher.
type Dialer func() (Publisher, error)

// Settings are the keys of an mqtt target table.
type Settings struct {
	Broker      string `toml:"broker"`
	Topic       string `toml:"topic"`
	ClientID    string `toml:"client_id"`
	Username    string `toml:"username"`
	PasswordEnv string `toml:"password_env"`
	QoS         int    `toml:"qos"`
	Retained    bool   `toml:"retained"`
}

// Validate reports missing or out-of-range settings.
func (s Settings) Validate() error {
	if s.Broker == "" {
		return errors.New("broker is required")
	}
	if s.QoS < 0 || s.QoS > 2 {
		return fmt.Errorf("qos %d out of range 0-2", s.QoS)
	}
	return nil
}

// Payload is the message body.
type Payload struct {
	Station StationPayload `json:"station"`
}

// StationPayload carries one reading.
type StationPayload struct {
	Timestamp string         `json:"timestamp"`
	Filename  string         `json:"filename"`
	Reading   domain.Reading `json:"reading"`
}

// FormatPayload creates the JSON payload for a reading.
func FormatPayload(r domain.Reading) ([]byte, error) {
	return json.Marshal(Payload{Station: StationPayload{
		Timestamp: r.MeasuredAt.UTC().Format(time.RFC3339),
		Filename:  r.Filename,
		Reading:   r,
	}})
}

// Sink connects on first use and publishes one reading per send.
type Sink struct {
	name     string
	topic    string
	qos      byte
	retained bool
	dial     Dialer
	pub      Publisher
	logger   *slog.Logger
}

// New creates a sink that connects through dial.
func New(name string, s Settings, dial Dialer, logger *slog.Logger) *Sink {
	topic := s.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	return &Sink{
		name:     name,
		topic:    topic,
		qos:      byte(s.QoS),
		retained: s.Retained,
		dial:     dial,
		logger:   logger,
	}
}

func (s *Sink) Name() string      { return s.name }
func (s *Sink) Mode() domain.Mode { return domain.ModePush }

// Send publishes readings[0].
func (s *Sink) Send(_ context.Context, readings []domain.Reading) (domain.Delivery, error) {
	if len(readings) == 0 {
		return domain.Delivery{}, errors.New("no reading to publish")
	}
	payload, err := FormatPayload(readings[0])
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("format payload: %w", err)
	}

	if s.pub == nil {
		pub, err := s.dial()
		if err != nil {
			return domain.Delivery{}, err
		}
		s.pub = pub
	}

	if err := s.pub.Publish(s.topic, s.qos, s.retained, payload); err != nil {
		return domain.Delivery{}, err
	}
	s.logger.Debug("reading published", "sink", s.name, "topic", s.topic)
	return domain.Delivery{Processed: 1, Message: "published to " + s.topic}, nil
}

// Close disconnects if a connection was made.
func (s *Sink) Close() error {
	if s.pub == nil {
		return nil
	}
	return s.pub.Close()
}
