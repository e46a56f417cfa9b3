package weatherservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wh2900-relay/internal/adapter/httpclient"
	"github.com/couchcryptid/wh2900-relay/internal/domain"
)

// Client uploads one reading per send to a weather service.
type Client struct {
	name       string
	service    Service
	id         string
	key        string
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewClient creates an upload client. An empty baseURL selects the service's
// production endpoint.
func NewClient(name string, svc Service, id, key, baseURL string, timeout time.Duration, clock clockwork.Clock, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = svc.DefaultBaseURL()
	}
	return &Client{
		name:       name,
		service:    svc,
		id:         id,
		key:        key,
		baseURL:    baseURL,
		httpClient: httpclient.New(timeout),
		clock:      clock,
		logger:     logger,
	}
}

func (c *Client) Name() string      { return c.name }
func (c *Client) Mode() domain.Mode { return domain.ModePush }

// Send uploads readings[0].
func (c *Client) Send(ctx context.Context, readings []domain.Reading) (domain.Delivery, error) {
	if len(readings) == 0 {
		return domain.Delivery{}, errors.New("no reading to upload")
	}
	r := readings[0]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uploadURL(r), nil)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := httpclient.Do(c.httpClient, req)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("%s upload: %w", c.service, err)
	}
	if !c.accepted(resp) {
		return domain.Delivery{}, resp.Reject()
	}

	msg := summary(r)
	c.logger.Debug("reading uploaded", "sink", c.name, "service", string(c.service), "reading", msg)
	return domain.Delivery{Processed: 1, Message: msg}, nil
}

func (c *Client) uploadURL(r domain.Reading) string {
	switch c.service {
	case Weathercloud:
		return weathercloudURL(c.baseURL, c.id, c.key, r)
	case Wunderground, PWSWeather:
		return imperialURL(c.baseURL, c.id, c.key, r)
	case Windguru:
		return windguruURL(c.baseURL, c.id, c.key, c.clock.Now(), r)
	default:
		panic(fmt.Sprintf("weatherservice: unhandled service %q", c.service))
	}
}

// accepted applies the service's success rule. Wunderground answers 200 even
// for rejected uploads and reports the outcome in the body.
func (c *Client) accepted(resp httpclient.Response) bool {
	if resp.Code != http.StatusOK {
		return false
	}
	if c.service == Wunderground {
		return strings.Contains(strings.ToLower(resp.Body), "success")
	}
	return true
}

func summary(r domain.Reading) string {
	temp, hum := "-", "-"
	if r.TempC != nil {
		temp = fmt.Sprintf("%.1f", *r.TempC)
	}
	if r.Humidity != nil {
		hum = fmt.Sprintf("%d", *r.Humidity)
	}
	return fmt.Sprintf("temp=%sC, hum=%s%%", temp, hum)
}
