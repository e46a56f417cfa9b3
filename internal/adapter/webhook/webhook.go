// Package webhook posts the representative reading to an arbitrary HTTP
// endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wh2900-relay/internal/adapter/httpclient"
	"github.com/couchcryptid/wh2900-relay/internal/domain"
)

// Settings are the keys of a curlpost target table.
type Settings struct {
	URL       string `toml:"url"`
	Method    string `toml:"method"`
	APIKeyEnv string `toml:"api_key_env"`
}

// Payload is the JSON document sent for one reading.
type Payload struct {
	Timestamp   string   `json:"timestamp"`
	Filename    string   `json:"filename"`
	TempC       *float64 `json:"temp_c"`
	Humidity    *int     `json:"humidity"`
	WindDir     *float64 `json:"wind_dir"`
	WindSpeedMS *float64 `json:"wind_speed_ms"`
	GustMS      *float64 `json:"gust_ms"`
	RainMM      *float64 `json:"rain_mm"`
	LightWM2    *float64 `json:"light_wm2"`
	UVI         *int     `json:"uvi"`
	RSSI        *float64 `json:"rssi"`
	PacketType  *int     `json:"packet_type"`
}

// NewPayload flattens a reading.
func NewPayload(r domain.Reading) Payload {
	p := Payload{
		Timestamp:   r.MeasuredAt.UTC().Format(time.RFC3339),
		Filename:    r.Filename,
		TempC:       r.TempC,
		Humidity:    r.Humidity,
		WindDir:     r.WindDir,
		WindSpeedMS: r.WindSpeedMS,
		GustMS:      r.GustMS,
		RainMM:      r.RainMM,
		LightWM2:    r.LightWM2,
		UVI:         r.UVI,
		RSSI:        r.RSSI,
	}
	if r.Variant != nil {
		v := int(*r.Variant)
		p.PacketType = &v
	}
	return p
}

// Query encodes the payload as URL parameters. Absent values are omitted.
func (p Payload) Query() url.Values {
	q := url.Values{
		"timestamp": {p.Timestamp},
		"filename":  {p.Filename},
	}
	setFloat := func(k string, v *float64) {
		if v != nil {
			q.Set(k, strconv.FormatFloat(*v, 'f', -1, 64))
		}
	}
	setInt := func(k string, v *int) {
		if v != nil {
			q.Set(k, strconv.Itoa(*v))
		}
	}
	setFloat("temp_c", p.TempC)
	setInt("humidity", p.Humidity)
	setFloat("wind_dir", p.WindDir)
	setFloat("wind_speed_ms", p.WindSpeedMS)
	setFloat("gust_ms", p.GustMS)
	setFloat("rain_mm", p.RainMM)
	setFloat("light_wm2", p.LightWM2)
	setInt("uvi", p.UVI)
	setFloat("rssi", p.RSSI)
	setInt("packet_type", p.PacketType)
	return q
}

// Sink delivers one reading per send as JSON (POST) or query parameters (GET).
type Sink struct {
	name       string
	url        string
	method     string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// ParseMethod accepts POST or GET; empty means POST.
func ParseMethod(m string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(m)) {
	case "", http.MethodPost:
		return http.MethodPost, nil
	case http.MethodGet:
		return http.MethodGet, nil
	default:
		return "", fmt.Errorf("unsupported method %q", m)
	}
}

// New creates a webhook sink. apiKey, when set, is sent as a bearer token.
func New(name, endpoint, method, apiKey string, timeout time.Duration, logger *slog.Logger) *Sink {
	return &Sink{
		name:       name,
		url:        endpoint,
		method:     method,
		apiKey:     apiKey,
		httpClient: httpclient.New(timeout),
		logger:     logger,
	}
}

func (s *Sink) Name() string      { return s.name }
func (s *Sink) Mode() domain.Mode { return domain.ModePush }

// Send delivers readings[0]. Any of 200, 201, 202 and 204 is success.
func (s *Sink) Send(ctx context.Context, readings []domain.Reading) (domain.Delivery, error) {
	if len(readings) == 0 {
		return domain.Delivery{}, errors.New("no reading to send")
	}

	req, err := s.newRequest(ctx, NewPayload(readings[0]))
	if err != nil {
		return domain.Delivery{}, err
	}

	resp, err := httpclient.Do(s.httpClient, req)
	if err != nil {
		return domain.Delivery{}, err
	}
	switch resp.Code {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
	default:
		return domain.Delivery{}, resp.Reject()
	}

	s.logger.Debug("webhook delivered", "sink", s.name, "status", resp.Code)
	return domain.Delivery{Processed: 1, Message: fmt.Sprintf("HTTP %d", resp.Code)}, nil
}

func (s *Sink) newRequest(ctx context.Context, p Payload) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if s.method == http.MethodGet {
		u, perr := url.Parse(s.url)
		if perr != nil {
			return nil, fmt.Errorf("parse url: %w", perr)
		}
		q := u.Query()
		for k, vs := range p.Query() {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	} else {
		body, merr := json.Marshal(p)
		if merr != nil {
			return nil, fmt.Errorf("encode payload: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	}
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	return req, nil
}
