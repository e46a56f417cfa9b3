// Package targets builds the configured sinks. Each config type maps to
// exactly one constructor; a type without one fails to build.
package targets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wh2900-relay/internal/adapter/kafka"
	"github.com/couchcryptid/wh2900-relay/internal/adapter/mqtt"
	"github.com/couchcryptid/wh2900-relay/internal/adapter/postgres"
	"github.com/couchcryptid/wh2900-relay/internal/adapter/sqlite"
	"github.com/couchcryptid/wh2900-relay/internal/adapter/weatherservice"
	"github.com/couchcryptid/wh2900-relay/internal/adapter/webhook"
	"github.com/couchcryptid/wh2900-relay/internal/config"
	"github.com/couchcryptid/wh2900-relay/internal/dispatch"
	"github.com/couchcryptid/wh2900-relay/internal/domain"
)

// Set is the built targets plus the resources to release after the run.
type Set struct {
	Targets []dispatch.Target
	closers []io.Closer
}

// Close releases every sink that holds a connection.
func (s *Set) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deps are the shared collaborators handed to sink constructors.
type Deps struct {
	Timeout time.Duration
	Clock   clockwork.Clock
	Logger  *slog.Logger
}

// Build constructs a dispatch target for every configured target, in config
// order. Invalid settings fail the build; missing credentials only deactivate
// the target.
func Build(ctx context.Context, cfgs []config.Target, deps Deps) (*Set, error) {
	set := &Set{}
	for _, tc := range cfgs {
		t, err := build(ctx, tc, deps)
		if err != nil {
			_ = set.Close()
			return nil, fmt.Errorf("target %s (%s): %w", tc.Name, tc.Type, err)
		}
		if c, ok := t.Sink.(io.Closer); ok {
			set.closers = append(set.closers, c)
		}
		if !t.Active {
			deps.Logger.Warn("target inactive", "sink", tc.Name, "reason", t.InactiveReason)
		}
		set.Targets = append(set.Targets, t)
	}
	return set, nil
}

func build(ctx context.Context, tc config.Target, deps Deps) (dispatch.Target, error) {
	if !tc.Active {
		mode, err := modeOf(tc.Type)
		if err != nil {
			return dispatch.Target{}, err
		}
		return dispatch.Target{
			Sink:           disabled{name: tc.Name, mode: mode},
			InactiveReason: "disabled in config",
		}, nil
	}

	switch tc.Type {
	case config.TypePostgres:
		return buildPostgres(ctx, tc, deps)
	case config.TypeSQLite:
		return buildSQLite(ctx, tc, deps)
	case config.TypeHTTPPost:
		return buildWeatherService(tc, deps)
	case config.TypeCurlPost:
		return buildWebhook(tc, deps)
	case config.TypeKafka:
		return buildKafka(tc, deps)
	case config.TypeMQTT:
		return buildMQTT(tc, deps)
	default:
		return dispatch.Target{}, fmt.Errorf("no sink for type %q", tc.Type)
	}
}

func modeOf(t config.TargetType) (domain.Mode, error) {
	switch t {
	case config.TypePostgres, config.TypeSQLite, config.TypeKafka:
		return domain.ModeBatch, nil
	case config.TypeHTTPPost, config.TypeCurlPost, config.TypeMQTT:
		return domain.ModePush, nil
	default:
		return 0, fmt.Errorf("no sink for type %q", t)
	}
}

func active(s domain.Sink, tc config.Target) dispatch.Target {
	return dispatch.Target{Sink: s, Active: true, MinInterval: tc.MinInterval}
}

func inactive(s domain.Sink, reason string) dispatch.Target {
	return dispatch.Target{Sink: s, InactiveReason: reason}
}

func buildPostgres(ctx context.Context, tc config.Target, deps Deps) (dispatch.Target, error) {
	var s postgres.Settings
	if err := tc.Decode(&s); err != nil {
		return dispatch.Target{}, err
	}
	password := config.Secret(s.PasswordEnv)
	if err := s.CheckPassword(password); err != nil {
		return inactive(disabled{name: tc.Name, mode: domain.ModeBatch}, fmt.Sprintf("missing credentials (%s)", s.PasswordEnv)), nil
	}
	sink, err := postgres.New(ctx, tc.Name, s, password, deps.Logger)
	if err != nil {
		return dispatch.Target{}, err
	}
	return active(sink, tc), nil
}

func buildSQLite(ctx context.Context, tc config.Target, deps Deps) (dispatch.Target, error) {
	var s sqlite.Settings
	if err := tc.Decode(&s); err != nil {
		return dispatch.Target{}, err
	}
	store, err := sqlite.Open(ctx, tc.Name, s, deps.Logger)
	if err != nil {
		return dispatch.Target{}, err
	}
	return active(store, tc), nil
}

func buildWeatherService(tc config.Target, deps Deps) (dispatch.Target, error) {
	var s weatherservice.Settings
	if err := tc.Decode(&s); err != nil {
		return dispatch.Target{}, err
	}
	svc, err := weatherservice.ParseService(s.Service)
	if err != nil {
		return dispatch.Target{}, err
	}
	if !tc.HasKey("min_interval") {
		tc.MinInterval = weatherservice.DefaultMinInterval
	}

	id, key := config.Secret(s.IDEnv), config.Secret(s.KeyEnv)
	client := weatherservice.NewClient(tc.Name, svc, id, key, s.BaseURL, deps.Timeout, deps.Clock, deps.Logger)
	if id == "" || key == "" {
		return inactive(client, fmt.Sprintf("missing credentials (%s, %s)", s.IDEnv, s.KeyEnv)), nil
	}
	return active(client, tc), nil
}

func buildWebhook(tc config.Target, deps Deps) (dispatch.Target, error) {
	var s webhook.Settings
	if err := tc.Decode(&s); err != nil {
		return dispatch.Target{}, err
	}
	method, err := webhook.ParseMethod(s.Method)
	if err != nil {
		return dispatch.Target{}, err
	}

	sink := webhook.New(tc.Name, s.URL, method, config.Secret(s.APIKeyEnv), deps.Timeout, deps.Logger)
	if s.URL == "" {
		return inactive(sink, "url not configured"), nil
	}
	return active(sink, tc), nil
}

func buildKafka(tc config.Target, deps Deps) (dispatch.Target, error) {
	var s kafka.Settings
	if err := tc.Decode(&s); err != nil {
		return dispatch.Target{}, err
	}
	if err := s.Validate(); err != nil {
		return dispatch.Target{}, err
	}
	return active(kafka.NewWriter(tc.Name, s, deps.Timeout, deps.Logger), tc), nil
}

func buildMQTT(tc config.Target, deps Deps) (dispatch.Target, error) {
	var s mqtt.Settings
	if err := tc.Decode(&s); err != nil {
		return dispatch.Target{}, err
	}
	if err := s.Validate(); err != nil {
		return dispatch.Target{}, err
	}
	dial := mqtt.Dial(s, config.Secret(s.PasswordEnv))
	return active(mqtt.New(tc.Name, s, dial, deps.Logger), tc), nil
}

// disabled stands in for a target that is never sent to.
type disabled struct {
	name string
	mode domain.Mode
}

func (d disabled) Name() string      { return d.name }
func (d disabled) Mode() domain.Mode { return d.mode }

func (d disabled) Send(context.Context, []domain.Reading) (domain.Delivery, error) {
	return domain.Delivery{}, errors.New("target is disabled")
}
