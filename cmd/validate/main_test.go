package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, captures map[string]string, targets string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range captures {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	cfgPath := filepath.Join(dir, "wh2900.toml")
	body := "[general]\ncapture_dir = \"" + dir + "\"\n" + targets
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return cfgPath
}

func sqliteTarget(t *testing.T) string {
	return "[target_local]\ntype = \"sqlite\"\npath = \"" + filepath.Join(t.TempDir(), "wh2900.db") + "\"\n"
}

func TestRun_AllPass(t *testing.T) {
	cfg := setup(t, map[string]string{
		"wh2900_1.json": `{"time":"2026-01-21 15:59:30","model":"WH2900","rows":[{"data":"000003136e8c191a050516a070"}]}`,
		"wh2900_2.json": `{"time":"2026-01-21 16:00:00","model":"WH2900","rows":[{"data":"000003216e8c191a050516a070"}]}`,
	}, sqliteTarget(t))

	var out bytes.Buffer
	code := run(context.Background(), &out, []string{cfg})

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
	assert.Contains(t, out.String(), "2 pending")
	assert.Contains(t, out.String(), "unknown 0x21")
	assert.Contains(t, out.String(), "rain state: none yet")
}

func TestRun_BadCaptureFails(t *testing.T) {
	cfg := setup(t, map[string]string{
		"wh2900_1.json": `{"time":"2026-01-21 15:59:30","model":"WH2900","rows":[{"data":"zz"}]}`,
	}, sqliteTarget(t))

	var out bytes.Buffer
	code := run(context.Background(), &out, []string{cfg})

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "wh2900_1.json")
	assert.Contains(t, out.String(), "Validation FAILED.")
}

func TestRun_NoActiveTargetsFails(t *testing.T) {
	cfg := setup(t, nil, "[target_hook]\ntype = \"curlpost\"\n")

	var out bytes.Buffer
	code := run(context.Background(), &out, []string{cfg})

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "url not configured")
	assert.Contains(t, out.String(), "no active targets")
}

func TestRun_CorruptRainState(t *testing.T) {
	cfg := setup(t, map[string]string{"rain_state.json": "{"}, sqliteTarget(t))

	var out bytes.Buffer
	code := run(context.Background(), &out, []string{cfg})

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "rain state: decode")
}

func TestRun_MissingConfig(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), &out, []string{filepath.Join(t.TempDir(), "none.toml")})
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FATAL")
}
