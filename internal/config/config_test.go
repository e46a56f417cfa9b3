package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wh2900-relay/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wh2900.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	g := cfg.General
	assert.Equal(t, "/var/log/wh2900", g.CaptureDir)
	assert.Equal(t, "wh2900_*.json", g.CapturePattern)
	assert.Equal(t, domain.PolicyAll, cfg.Policy)
	assert.Equal(t, "/var/log/wh2900/rain_state.json", g.RainStateFile)
	assert.Empty(t, g.PushStateFile)
	assert.InDelta(t, 100.0, g.RainThresholdMM, 1e-9)
	assert.Equal(t, 30*time.Second, g.RequestTimeout.Duration)
	assert.Equal(t, 10*time.Second, g.LockTimeout.Duration)
	assert.Equal(t, filepath.Join(filepath.Dir(path), ".env"), g.EnvFile)
	assert.Equal(t, "info", g.LogLevel)
	assert.Equal(t, "json", g.LogFormat)
	assert.Empty(t, cfg.Targets)
}

func TestLoad_General(t *testing.T) {
	path := writeConfig(t, `
[general]
capture_dir = "/data/captures"
capture_pattern = "cap_*.json"
delete_policy = "any"
rain_state_file = "/data/rain.json"
push_state_file = "/data/push.json"
rain_threshold_mm = 250.0
request_timeout = "5s"
lock_timeout = "2s"
env_file = "/etc/wh2900/secrets.env"
log_level = "debug"
log_format = "text"
metrics_textfile = "/var/lib/node_exporter/wh2900.prom"
metrics_pushgateway = "http://pushgateway:9091"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	g := cfg.General
	assert.Equal(t, "/data/captures", g.CaptureDir)
	assert.Equal(t, "cap_*.json", g.CapturePattern)
	assert.Equal(t, domain.PolicyAny, cfg.Policy)
	assert.Equal(t, "/data/rain.json", g.RainStateFile)
	assert.Equal(t, "/data/push.json", g.PushStateFile)
	assert.InDelta(t, 250.0, g.RainThresholdMM, 1e-9)
	assert.Equal(t, 5*time.Second, g.RequestTimeout.Duration)
	assert.Equal(t, 2*time.Second, g.LockTimeout.Duration)
	assert.Equal(t, "/etc/wh2900/secrets.env", g.EnvFile)
	assert.Equal(t, "debug", g.LogLevel)
	assert.Equal(t, "text", g.LogFormat)
	assert.Equal(t, "/var/lib/node_exporter/wh2900.prom", g.MetricsTextfile)
	assert.Equal(t, "http://pushgateway:9091", g.MetricsPushgateway)
}

func TestLoad_RainStateFollowsCaptureDir(t *testing.T) {
	path := writeConfig(t, "[general]\ncapture_dir = \"/srv/wh\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/wh/rain_state.json", cfg.General.RainStateFile)
}

func TestLoad_LogEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "text")
	path := writeConfig(t, "[general]\nlog_level = \"debug\"\nlog_format = \"json\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.General.LogLevel)
	assert.Equal(t, "text", cfg.General.LogFormat)
}

func TestLoad_Targets(t *testing.T) {
	path := writeConfig(t, `
[general]
capture_dir = "/data"

[target_local]
type = "sqlite"
path = "/data/wh2900.db"

[target_wu]
type = "remote-push"
service = "wunderground"
id_env = "WU_ID"
key_env = "WU_KEY"
min_interval = "5m"

[target_db]
type = "storage"
active = false
dsn = "postgres://localhost/weather"

[target_hook]
type = "generic-webhook"
url = "https://example.test/hook"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Targets, 4)

	local, wu, db, hook := cfg.Targets[0], cfg.Targets[1], cfg.Targets[2], cfg.Targets[3]

	assert.Equal(t, "local", local.Name)
	assert.Equal(t, TypeSQLite, local.Type)
	assert.True(t, local.Active)
	assert.Zero(t, local.MinInterval)

	assert.Equal(t, "wu", wu.Name)
	assert.Equal(t, TypeHTTPPost, wu.Type)
	assert.Equal(t, 5*time.Minute, wu.MinInterval)
	assert.True(t, wu.HasKey("min_interval"))
	assert.False(t, local.HasKey("min_interval"))

	assert.Equal(t, TypePostgres, db.Type)
	assert.False(t, db.Active)

	assert.Equal(t, TypeCurlPost, hook.Type)

	var settings struct {
		Service string `toml:"service"`
		IDEnv   string `toml:"id_env"`
	}
	require.NoError(t, wu.Decode(&settings))
	assert.Equal(t, "wunderground", settings.Service)
	assert.Equal(t, "WU_ID", settings.IDEnv)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unknown target type", "[target_x]\ntype = \"carrier-pigeon\"\n", `unknown target type "carrier-pigeon"`},
		{"missing target type", "[target_x]\nactive = true\n", "unknown target type"},
		{"unknown delete policy", "[general]\ndelete_policy = \"sometimes\"\n", "sometimes"},
		{"invalid duration", "[general]\nrequest_timeout = \"soon\"\n", "section general"},
		{"invalid min interval", "[target_x]\ntype = \"sqlite\"\nmin_interval = \"-1s\"\n", "target_x"},
		{"malformed toml", "[general\n", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WH2900_TEST_SECRET=from-file\nWH2900_TEST_KEEP=from-file\n"), 0o600))
	path := filepath.Join(dir, "wh2900.toml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	t.Setenv("WH2900_TEST_KEEP", "from-env")
	// Registered so t.Setenv restores the unset state afterwards.
	t.Setenv("WH2900_TEST_SECRET", "")
	require.NoError(t, os.Unsetenv("WH2900_TEST_SECRET"))

	_, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", Secret("WH2900_TEST_SECRET"))
	assert.Equal(t, "from-env", Secret("WH2900_TEST_KEEP"))
}

func TestResolvePath(t *testing.T) {
	t.Setenv(PathEnv, "")
	assert.Equal(t, DefaultPath, ResolvePath(nil))
	assert.Equal(t, "/tmp/a.toml", ResolvePath([]string{"/tmp/a.toml"}))

	t.Setenv(PathEnv, "/opt/wh2900.toml")
	assert.Equal(t, "/opt/wh2900.toml", ResolvePath(nil))
	assert.Equal(t, "/tmp/a.toml", ResolvePath([]string{"/tmp/a.toml"}))
}

func TestParseTargetType(t *testing.T) {
	tests := []struct {
		in   string
		want TargetType
	}{
		{"postgres", TypePostgres},
		{"storage", TypePostgres},
		{"SQLite", TypeSQLite},
		{"http_post", TypeHTTPPost},
		{"remote-push", TypeHTTPPost},
		{"curlpost", TypeCurlPost},
		{"generic-webhook", TypeCurlPost},
		{"kafka", TypeKafka},
		{" mqtt ", TypeMQTT},
	}
	for _, tt := range tests {
		got, err := ParseTargetType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseTargetType("ftp")
	assert.Error(t, err)
}

func TestSecret(t *testing.T) {
	t.Setenv("WH2900_TEST_TOKEN", "  abc  ")
	assert.Equal(t, "abc", Secret("WH2900_TEST_TOKEN"))
	assert.Empty(t, Secret(""))
	assert.Empty(t, Secret("WH2900_TEST_UNSET_VAR"))
}
