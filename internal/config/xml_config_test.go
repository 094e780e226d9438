package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<DrawingChecker>")
	assert.Contains(t, string(data), "<Model>gpt-4o</Model>")
	assert.NotContains(t, string(data), "<APIKey>")

	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "data/uploads"), cfg.Storage.UploadsDirectory)
	assert.Equal(t, filepath.Join(dir, "reference_drawings/master_drawings.zip"), cfg.Storage.ReferenceDrawingsZip)
	assert.Empty(t, cfg.Review.ChecklistFile)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention())
	assert.Equal(t, 300*time.Second, cfg.RequestTimeout())
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.config")
	content := `<?xml version="1.0" encoding="UTF-8"?>
<DrawingChecker>
  <Server><Port>9000</Port><BindAddress>127.0.0.1</BindAddress></Server>
  <Storage><DataDirectory>/srv/data</DataDirectory><HistoryDatabase>db/history.duckdb</HistoryDatabase></Storage>
  <Review><Model>gpt-4o-mini</Model><Temperature>0.5</Temperature><MaxConcurrentReviews>4</MaxConcurrentReviews><ChecklistFile>checks.yaml</ChecklistFile></Review>
  <Advanced><LogLevel>debug</LogLevel></Advanced>
</DrawingChecker>`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddr())
	assert.Equal(t, "/srv/data", cfg.Storage.DataDirectory)
	assert.Equal(t, filepath.Join(dir, "db/history.duckdb"), cfg.Storage.HistoryDatabase)
	assert.Equal(t, "gpt-4o-mini", cfg.Review.Model)
	assert.Equal(t, float32(0.5), cfg.Review.Temperature)
	assert.Equal(t, 4, cfg.Review.MaxConcurrentReviews)
	assert.Equal(t, filepath.Join(dir, "checks.yaml"), cfg.Review.ChecklistFile)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	// Unset elements keep their defaults.
	assert.Equal(t, 1000, cfg.Review.ExcerptLength)
	assert.Equal(t, 7, cfg.Processing.SessionRetentionDays)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("DATA_DIR", "/var/lib/checker")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("OPENAI_MODEL", "llama3")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "/var/lib/checker", cfg.Storage.DataDirectory)
	assert.Equal(t, "sk-test", cfg.Review.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Review.BaseURL)
	assert.Equal(t, "llama3", cfg.Review.Model)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.config")
	require.NoError(t, os.WriteFile(bad, []byte("<DrawingChecker><Server>"), 0644))
	_, err := LoadConfig(bad)
	assert.Error(t, err)

	zero := filepath.Join(dir, "zero.config")
	require.NoError(t, os.WriteFile(zero, []byte("<DrawingChecker><Review><MaxConcurrentReviews>0</MaxConcurrentReviews></Review></DrawingChecker>"), 0644))
	_, err = LoadConfig(zero)
	assert.Error(t, err)
}

func TestLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := DefaultConfig()
		cfg.Advanced.LogLevel = in
		assert.Equal(t, want, cfg.LogLevel(), in)
	}
}

func TestWaitTimeout_BelowWriteTimeout(t *testing.T) {
	tests := []struct {
		name        string
		write, wait int
		want        time.Duration
	}{
		{"defaults", 900, 870, 870 * time.Second},
		{"equal to write timeout", 900, 900, 890 * time.Second},
		{"above write timeout", 60, 300, 50 * time.Second},
		{"unbounded wait", 120, 0, 110 * time.Second},
		{"short write timeout", 8, 30, 4 * time.Second},
		{"no write timeout", 0, 300, 300 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Server.WriteTimeout = tt.write
			cfg.Processing.WaitTimeoutSeconds = tt.wait
			got := cfg.WaitTimeout()
			assert.Equal(t, tt.want, got)
			if tt.write > 0 {
				assert.Less(t, got, time.Duration(tt.write)*time.Second)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.resolvePaths(dir)
	require.NoError(t, cfg.EnsureDirectories())

	for _, d := range []string{cfg.Storage.UploadsDirectory, cfg.Storage.ReportsDirectory, cfg.Storage.ReferenceExtractDirectory} {
		st, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, st.IsDir())
	}
}
