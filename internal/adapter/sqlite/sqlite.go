// Package sqlite stores readings in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/wh2900-relay/internal/adapter/sqlrow"
	"github.com/couchcryptid/wh2900-relay/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS dataraw (
    filename   TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
CREATE TABLE IF NOT EXISTS medicion (
    filename       TEXT PRIMARY KEY,
    fecha_medicion TEXT NOT NULL,
    packet_type    INTEGER,
    temp_c         REAL,
    humidity       INTEGER,
    wind_dir       REAL,
    wind_speed_ms  REAL,
    gust_ms        REAL,
    light_wm2      REAL,
    uvi            INTEGER,
    rain_mm        REAL,
    rssi           REAL,
    raw_data       TEXT
);
CREATE INDEX IF NOT EXISTS medicion_fecha ON medicion (fecha_medicion);`

const insertRawSQL = `INSERT OR IGNORE INTO dataraw (filename, data) VALUES (?, ?)`

var insertMeasurementSQL = `INSERT OR IGNORE INTO medicion (` +
	strings.Join(sqlrow.MeasurementColumns, ", ") +
	`) VALUES (?` + strings.Repeat(", ?", len(sqlrow.MeasurementColumns)-1) + `)`

// Settings are the keys of a sqlite target table.
type Settings struct {
	Path string `toml:"path"`
}

// Store persists readings into one database file.
type Store struct {
	name   string
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database and its tables.
func Open(ctx context.Context, name string, s Settings, logger *slog.Logger) (*Store, error) {
	if s.Path == "" {
		return nil, errors.New("path is required")
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite %s: %w", name, err)
		}
	}

	db, err := sql.Open("sqlite", s.Path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("sqlite %s: %w", name, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite %s: create schema: %w", name, err)
	}
	return &Store{name: name, db: db, logger: logger}, nil
}

func (s *Store) Name() string      { return s.name }
func (s *Store) Mode() domain.Mode { return domain.ModeBatch }

// Send inserts every reading. Readings already stored are ignored.
func (s *Store) Send(ctx context.Context, readings []domain.Reading) (domain.Delivery, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return domain.Delivery{}, fmt.Errorf("connect: %w", err)
	}

	var raws, measurements int
	for _, r := range readings {
		rawNew, measNew, err := s.insert(ctx, r)
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

func (s *Store) insert(ctx context.Context, r domain.Reading) (rawNew, measNew bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, insertRawSQL, r.Filename, sqlrow.Envelope(r))
	if err != nil {
		return false, false, fmt.Errorf("dataraw: %w", err)
	}
	rawNew = affected(res)

	if r.HasValues() {
		args := sqlrow.MeasurementArgs(r)
		args[1] = r.MeasuredAt.UTC().Format(time.RFC3339)
		res, err = tx.ExecContext(ctx, insertMeasurementSQL, args...)
		if err != nil {
			return false, false, fmt.Errorf("medicion: %w", err)
		}
		measNew = affected(res)
	}

	if err = tx.Commit(); err != nil {
		return false, false, err
	}
	return rawNew, measNew, nil
}

func affected(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

// Count returns the number of rows in table. Used by tooling and tests.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	switch table {
	case "dataraw", "medicion":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
