package targets

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wh2900-relay/internal/adapter/weatherservice"
	"github.com/couchcryptid/wh2900-relay/internal/config"
	"github.com/couchcryptid/wh2900-relay/internal/domain"
)

func loadTargets(t *testing.T, body string) []config.Target {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wh2900.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg.Targets
}

func testDeps() Deps {
	return Deps{
		Timeout: time.Second,
		Clock:   clockwork.NewFakeClock(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func build(t *testing.T, body string) *Set {
	t.Helper()
	set, err := Build(context.Background(), loadTargets(t, body), testDeps())
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })
	return set
}

func TestBuild_AllTypes(t *testing.T) {
	t.Setenv("WH2900_TEST_WU_ID", "ISTATION")
	t.Setenv("WH2900_TEST_WU_KEY", "key")
	dbPath := filepath.Join(t.TempDir(), "wh2900.db")

	set := build(t, `
[target_local]
type = "sqlite"
path = "`+dbPath+`"

[target_db]
type = "storage"
dsn = "postgres://relay@localhost:5432/clima"

[target_wu]
type = "remote-push"
service = "wunderground"
id_env = "WH2900_TEST_WU_ID"
key_env = "WH2900_TEST_WU_KEY"

[target_hook]
type = "generic-webhook"
url = "https://example.test/hook"
method = "get"

[target_bus]
type = "kafka"
brokers = ["localhost:9092"]
topic = "wh2900.readings"

[target_mqtt]
type = "mqtt"
broker = "tcp://localhost:1883"
`)

	require.Len(t, set.Targets, 6)
	names := make([]string, 0, 6)
	for _, tg := range set.Targets {
		names = append(names, tg.Sink.Name())
		assert.True(t, tg.Active, tg.Sink.Name())
	}
	assert.Equal(t, []string{"local", "db", "wu", "hook", "bus", "mqtt"}, names)

	assert.Equal(t, domain.ModeBatch, set.Targets[0].Sink.Mode())
	assert.Equal(t, domain.ModeBatch, set.Targets[1].Sink.Mode())
	assert.Equal(t, domain.ModePush, set.Targets[2].Sink.Mode())
	assert.Equal(t, domain.ModePush, set.Targets[3].Sink.Mode())
	assert.Equal(t, domain.ModeBatch, set.Targets[4].Sink.Mode())
	assert.Equal(t, domain.ModePush, set.Targets[5].Sink.Mode())

	assert.Equal(t, weatherservice.DefaultMinInterval, set.Targets[2].MinInterval)
	assert.Zero(t, set.Targets[3].MinInterval)

	_, err := os.Stat(dbPath)
	assert.NoError(t, err, "sqlite database created at build time")
}

func TestBuild_MinIntervalOverride(t *testing.T) {
	t.Setenv("WH2900_TEST_WC_ID", "id")
	t.Setenv("WH2900_TEST_WC_KEY", "key")

	set := build(t, `
[target_wc]
type = "http_post"
service = "weathercloud"
id_env = "WH2900_TEST_WC_ID"
key_env = "WH2900_TEST_WC_KEY"
min_interval = "2m"
`)
	assert.Equal(t, 2*time.Minute, set.Targets[0].MinInterval)
}

func TestBuild_InactiveTargets(t *testing.T) {
	set := build(t, `
[target_wu]
type = "http_post"
service = "wunderground"
id_env = "WH2900_TEST_UNSET_ID"
key_env = "WH2900_TEST_UNSET_KEY"

[target_hook]
type = "curlpost"

[target_db]
type = "postgres"
password_env = "WH2900_TEST_UNSET_PG"

[target_off]
type = "sqlite"
active = false
path = "/nonexistent/dir/wh2900.db"
`)

	require.Len(t, set.Targets, 4)
	for _, tg := range set.Targets {
		assert.False(t, tg.Active, tg.Sink.Name())
		assert.NotEmpty(t, tg.InactiveReason)
	}
	assert.Contains(t, set.Targets[0].InactiveReason, "WH2900_TEST_UNSET_ID")
	assert.Equal(t, "url not configured", set.Targets[1].InactiveReason)
	assert.Contains(t, set.Targets[2].InactiveReason, "WH2900_TEST_UNSET_PG")
	assert.Equal(t, "disabled in config", set.Targets[3].InactiveReason)
	assert.Equal(t, "off", set.Targets[3].Sink.Name())
	assert.Equal(t, domain.ModeBatch, set.Targets[3].Sink.Mode())

	_, err := set.Targets[3].Sink.Send(context.Background(), nil)
	assert.Error(t, err)
}

func TestBuild_InvalidSettingsFail(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown service", "[target_x]\ntype = \"http_post\"\nservice = \"meteoclimatic\"\n"},
		{"bad webhook method", "[target_x]\ntype = \"curlpost\"\nurl = \"http://x\"\nmethod = \"DELETE\"\n"},
		{"kafka without topic", "[target_x]\ntype = \"kafka\"\nbrokers = [\"localhost:9092\"]\n"},
		{"mqtt without broker", "[target_x]\ntype = \"mqtt\"\n"},
		{"sqlite without path", "[target_x]\ntype = \"sqlite\"\n"},
		{"wrong value type", "[target_x]\ntype = \"kafka\"\nbrokers = \"localhost:9092\"\ntopic = \"t\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(context.Background(), loadTargets(t, tt.body), testDeps())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "target x")
		})
	}
}

func TestModeOfCoversEveryType(t *testing.T) {
	for _, typ := range config.TargetTypes {
		_, err := modeOf(typ)
		assert.NoError(t, err, typ)
	}
	_, err := modeOf("ftp")
	assert.Error(t, err)
}
