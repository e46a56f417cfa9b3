// Package postgres stores readings in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/wh2900-relay/internal/adapter/sqlrow"
	"github.com/couchcryptid/wh2900-relay/internal/domain"
)

// Schema creates the tables written by the sink.
const Schema = `
CREATE TABLE IF NOT EXISTS dataraw (
    filename   TEXT PRIMARY KEY,
    data       JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS medicion (
    filename       TEXT PRIMARY KEY,
    fecha_medicion TIMESTAMPTZ NOT NULL,
    packet_type    SMALLINT,
    temp_c         DOUBLE PRECISION,
    humidity       INTEGER,
    wind_dir       DOUBLE PRECISION,
    wind_speed_ms  DOUBLE PRECISION,
    gust_ms        DOUBLE PRECISION,
    light_wm2      DOUBLE PRECISION,
    uvi            INTEGER,
    rain_mm        DOUBLE PRECISION,
    rssi           DOUBLE PRECISION,
    raw_data       TEXT
);`

const insertRawSQL = `
INSERT INTO dataraw (filename, data)
VALUES ($1, $2::jsonb)
ON CONFLICT (filename) DO NOTHING`

var insertMeasurementSQL = `
INSERT INTO medicion (` + strings.Join(sqlrow.MeasurementColumns, ", ") + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (filename) DO NOTHING`

// Settings are the keys of a postgres target table. DSN wins over the
// individual connection keys.
type Settings struct {
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	DBName       string `toml:"dbname"`
	User         string `toml:"user"`
	PasswordEnv  string `toml:"password_env"`
	CreateSchema bool   `toml:"create_schema"`
}

// ConnString builds a connection URL. password is the resolved secret.
func (s Settings) ConnString(password string) string {
	if s.DSN != "" {
		return s.DSN
	}
	host := s.Host
	if host == "" {
		host = "localhost"
	}
	port := s.Port
	if port == 0 {
		port = 5432
	}
	dbname := s.DBName
	if dbname == "" {
		dbname = "clima"
	}
	user := s.User
	if user == "" {
		user = "clima"
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + dbname,
	}
	if password != "" {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

// errNoPassword is reported when password_env names an unset variable.
var errNoPassword = errors.New("password_env is set but the variable is empty")

// CheckPassword reports an unresolved password reference.
func (s Settings) CheckPassword(password string) error {
	if s.DSN == "" && s.PasswordEnv != "" && password == "" {
		return errNoPassword
	}
	return nil
}

// store is the persistence surface used by Sink.
type store interface {
	Ping(ctx context.Context) error
	Insert(ctx context.Context, r domain.Reading) (rawNew, measurementNew bool, err error)
	Close()
}

// Sink persists every reading of a run. Re-ingesting a file already stored is
// a no-op rather than an error.
type Sink struct {
	name   string
	store  store
	logger *slog.Logger
}

// New creates a sink. The pool connects lazily, so an unreachable server
// surfaces as a failed outcome at send time rather than here.
func New(ctx context.Context, name string, s Settings, password string, logger *slog.Logger) (*Sink, error) {
	pool, err := pgxpool.New(ctx, s.ConnString(password))
	if err != nil {
		return nil, fmt.Errorf("postgres %s: %w", name, err)
	}
	st := &pgStore{pool: pool, createSchema: s.CreateSchema}
	return &Sink{name: name, store: st, logger: logger}, nil
}

func (s *Sink) Name() string      { return s.name }
func (s *Sink) Mode() domain.Mode { return domain.ModeBatch }

// Send inserts each reading in its own transaction. A reading that fails to
// insert is logged and skipped; only a connection failure fails the send.
func (s *Sink) Send(ctx context.Context, readings []domain.Reading) (domain.Delivery, error) {
	if err := s.store.Ping(ctx); err != nil {
		return domain.Delivery{}, fmt.Errorf("connect: %w", err)
	}

	var raws, measurements int
	for _, r := range readings {
		rawNew, measNew, err := s.store.Insert(ctx, r)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Delivery{}, fmt.Errorf("insert %s: %w", r.Filename, err)
			}
			s.logger.Error("insert reading", "sink", s.name, "file", r.Filename, "error", err)
			continue
		}
		if rawNew {
			raws++
		}
		if measNew {
			measurements++
		}
	}

	return domain.Delivery{
		Processed: measurements,
		Message:   fmt.Sprintf("medicion: %d, dataraw: %d", measurements, raws),
	}, nil
}

func (s *Sink) Close() error {
	s.store.Close()
	return nil
}

type pgStore struct {
	pool         *pgxpool.Pool
	createSchema bool
	schemaReady  bool
}

func (p *pgStore) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return err
	}
	if p.createSchema && !p.schemaReady {
		if _, err := p.pool.Exec(ctx, Schema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		p.schemaReady = true
	}
	return nil
}

func (p *pgStore) Insert(ctx context.Context, r domain.Reading) (bool, bool, error) {
	var rawNew, measNew bool
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertRawSQL, r.Filename, sqlrow.Envelope(r))
		if err != nil {
			return fmt.Errorf("dataraw: %w", err)
		}
		rawNew = tag.RowsAffected() > 0

		if !r.HasValues() {
			return nil
		}
		tag, err = tx.Exec(ctx, insertMeasurementSQL, sqlrow.MeasurementArgs(r)...)
		if err != nil {
			return fmt.Errorf("medicion: %w", err)
		}
		measNew = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, false, err
	}
	return rawNew, measNew, nil
}

func (p *pgStore) Close() {
	p.pool.Close()
}
