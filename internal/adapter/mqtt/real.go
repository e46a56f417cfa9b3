package mqtt

import (
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
}

// Dial returns a Dialer for the configured broker. The relay exits after
// each run, so the connection is not retried.
func Dial(s Settings, password string) Dialer {
	return func() (Publisher, error) {
		clientID := s.ClientID
		if clientID == "" {
			clientID = "wh2900-relay"
		}
		opts := paho.NewClientOptions().
			AddBroker(s.Broker).
			SetClientID(clientID).
			SetConnectTimeout(connectTimeout).
			SetAutoReconnect(false).
			SetConnectRetry(false)
		if s.Username != "" {
			opts.SetUsername(s.Username)
			opts.SetPassword(password)
		}

		client := paho.NewClient(opts)
		token := client.Connect()
		if !token.WaitTimeout(connectTimeout) {
			return nil, errors.New("connection timeout")
		}
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
		return &RealPublisher{client: client}, nil
	}
}

// Publish sends payload to topic.
func (p *RealPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}
