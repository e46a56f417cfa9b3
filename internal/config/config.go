// Package config loads the relay's TOML configuration: a [general] table and
// one [target_<name>] table per sink.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/wh2900-relay/internal/domain"
)

const (
	// DefaultPath is used when neither an argument nor WH2900_CONFIG names a file.
	DefaultPath = "/etc/wh2900/wh2900.toml"
	// PathEnv overrides DefaultPath.
	PathEnv = "WH2900_CONFIG"

	targetPrefix = "target_"
)

// ErrNotFound is returned when the configuration file does not exist.
var ErrNotFound = errors.New("config file not found")

// Duration is a time.Duration written as a Go duration string ("30s", "10m").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", text)
	}
	d.Duration = v
	return nil
}

// General holds the [general] table.
type General struct {
	CaptureDir         string   `toml:"capture_dir"`
	CapturePattern     string   `toml:"capture_pattern"`
	DeletePolicy       string   `toml:"delete_policy"`
	RainStateFile      string   `toml:"rain_state_file"`
	PushStateFile      string   `toml:"push_state_file"`
	RainThresholdMM    float64  `toml:"rain_threshold_mm"`
	RequestTimeout     Duration `toml:"request_timeout"`
	LockTimeout        Duration `toml:"lock_timeout"`
	EnvFile            string   `toml:"env_file"`
	LogLevel           string   `toml:"log_level"`
	LogFormat          string   `toml:"log_format"`
	MetricsTextfile    string   `toml:"metrics_textfile"`
	MetricsPushgateway string   `toml:"metrics_pushgateway"`
}

// Config holds all relay settings.
type Config struct {
	Path    string
	General General
	Policy  domain.RetentionPolicy
	Targets []Target
}

// ResolvePath picks the config file: the first argument, else $WH2900_CONFIG,
// else DefaultPath.
func ResolvePath(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	if v := os.Getenv(PathEnv); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the configuration file at path, loads the env file it names and
// applies defaults. Unknown target types and delete policies fail the load.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat config: %w", err)
	}

	var raw map[string]toml.Primitive
	md, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := &Config{Path: path}
	if prim, ok := raw["general"]; ok {
		if err := md.PrimitiveDecode(prim, &cfg.General); err != nil {
			return nil, fmt.Errorf("section general: %w", err)
		}
	}
	applyDefaults(&cfg.General, filepath.Dir(path))

	if err := loadEnvFile(cfg.General.EnvFile); err != nil {
		return nil, err
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.General.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.General.LogFormat = v
	}

	cfg.Policy, err = domain.ParseRetentionPolicy(cfg.General.DeletePolicy)
	if err != nil {
		return nil, fmt.Errorf("section general: %w", err)
	}

	for _, key := range md.Keys() {
		if len(key) != 1 || !strings.HasPrefix(key[0], targetPrefix) {
			continue
		}
		t, err := newTarget(md, key[0], raw[key[0]])
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, t)
	}

	return cfg, nil
}

func applyDefaults(g *General, baseDir string) {
	if g.CaptureDir == "" {
		g.CaptureDir = "/var/log/wh2900"
	}
	if g.CapturePattern == "" {
		g.CapturePattern = "wh2900_*.json"
	}
	if g.DeletePolicy == "" {
		g.DeletePolicy = string(domain.PolicyAll)
	}
	if g.RainStateFile == "" {
		g.RainStateFile = filepath.Join(g.CaptureDir, "rain_state.json")
	}
	if g.RainThresholdMM <= 0 {
		g.RainThresholdMM = domain.RainAccumulatorThreshold
	}
	if g.RequestTimeout.Duration == 0 {
		g.RequestTimeout.Duration = 30 * time.Second
	}
	if g.LockTimeout.Duration == 0 {
		g.LockTimeout.Duration = 10 * time.Second
	}
	if g.EnvFile == "" {
		g.EnvFile = ".env"
	}
	if !filepath.IsAbs(g.EnvFile) {
		g.EnvFile = filepath.Join(baseDir, g.EnvFile)
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.LogFormat == "" {
		g.LogFormat = "json"
	}
}

// loadEnvFile exports credentials from an optional dotenv file without
// overriding variables already set.
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}
