package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "syncengine.db", cfg.LogPath)
	assert.Equal(t, 2*time.Hour, cfg.TTL())
	assert.Equal(t, 25, cfg.BatchSize)
	assert.True(t, cfg.DrainOnStart)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_path: /var/lib/pos/actions.db
reservation_ttl: 90m
batch_size: 10
drain_on_start: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/pos/actions.db", cfg.LogPath)
	assert.Equal(t, 90*time.Minute, cfg.TTL())
	assert.Equal(t, 10, cfg.BatchSize)
	assert.False(t, cfg.DrainOnStart)
}

func TestLoad_PartialFillsDefaults(t *testing.T) {
	path := writeConfig(t, "batch_size: 5\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, "syncengine.db", cfg.LogPath)
	assert.Equal(t, "2h", cfg.ReservationTTL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty log path", func(c *Config) { c.LogPath = "" }, "log_path"},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"bad ttl", func(c *Config) { c.ReservationTTL = "soonish" }, "reservation_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
