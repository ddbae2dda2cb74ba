package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/marketlens/internal/demand"
	"github.com/ezoic/marketlens/internal/forecast"
	"github.com/ezoic/marketlens/internal/narrative"
	"github.com/ezoic/marketlens/internal/query"
	mlErrors "github.com/ezoic/marketlens/pkg/errors"
)

// isolate clears the variables Load reads so the host environment cannot
// leak into a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(PathEnvVar, "")
	t.Setenv(GroqKeyEnvVar, "")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := LoadWithEnvFile("", "")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, demand.DefaultOptions(), cfg.DemandOptions())
	assert.Equal(t, query.DefaultBounds(), cfg.QueryBounds())

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, forecast.DefaultOptions(start), cfg.ForecastOptions(start))
	assert.False(t, cfg.Narrative.Active())
}

func TestLoadLayers(t *testing.T) {
	isolate(t)
	path := writeFile(t, "marketlens.yaml", `
data:
  clean_path: /data/clean.csv
model:
  max_depth: 3
  n_estimators: 50
narrative:
  timeout: 10s
log:
  format: json
`)
	t.Setenv("MARKETLENS_MODEL__MAX_DEPTH", "7")
	t.Setenv("MARKETLENS_FORECAST__SAMPLE_SIZE", "20")

	cfg, err := LoadWithEnvFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "/data/clean.csv", cfg.Data.CleanPath)
	assert.Equal(t, Default().Data.FullPath, cfg.Data.FullPath)
	assert.Equal(t, 50, cfg.Model.NEstimators)
	assert.Equal(t, 7, cfg.Model.MaxDepth)
	assert.Equal(t, 20, cfg.Forecast.SampleSize)
	assert.Equal(t, 10*time.Second, cfg.Narrative.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	isolate(t)
	path := writeFile(t, "custom.yaml", "similarity:\n  top_k: 8\n")
	t.Setenv(PathEnvVar, path)

	cfg, err := LoadWithEnvFile("", "")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Similarity.TopK)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := LoadWithEnvFile(filepath.Join(t.TempDir(), "nope.yaml"), "")
	require.Error(t, err)
}

func TestLoadAPIKey(t *testing.T) {
	isolate(t)
	t.Setenv(GroqKeyEnvVar, "groq-key")
	cfg, err := LoadWithEnvFile("", "")
	require.NoError(t, err)
	assert.Equal(t, "groq-key", cfg.Narrative.APIKey)
	assert.True(t, cfg.Narrative.Active())

	s, err := cfg.Summarizer()
	require.NoError(t, err)
	client, ok := s.(*narrative.ChatClient)
	require.True(t, ok)
	assert.Equal(t, narrative.DefaultModel, client.Model())

	// the dedicated variable wins over the fallback
	t.Setenv("MARKETLENS_NARRATIVE__API_KEY", "own-key")
	cfg, err = LoadWithEnvFile("", "")
	require.NoError(t, err)
	assert.Equal(t, "own-key", cfg.Narrative.APIKey)

	t.Setenv("MARKETLENS_NARRATIVE__ENABLED", "false")
	cfg, err = LoadWithEnvFile("", "")
	require.NoError(t, err)
	s, err = cfg.Summarizer()
	require.NoError(t, err)
	assert.Equal(t, narrative.Disabled{}, s)
}

func TestLoadEnvFile(t *testing.T) {
	isolate(t)
	const key = "MARKETLENS_REPORT__OUTPUT_DIR"
	_, preset := os.LookupEnv(key)
	if preset {
		t.Skip(key + " set in the environment")
	}
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	envFile := writeFile(t, ".env", key+"=from-dotenv\n")
	cfg, err := LoadWithEnvFile("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Report.OutputDir)

	// a missing .env is fine
	_, err = LoadWithEnvFile("", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"test size", "model:\n  test_size: 1.5\n"},
		{"estimators", "model:\n  n_estimators: 0\n"},
		{"sort key", "similarity:\n  sort_by: colour\n"},
		{"price range", "query:\n  min_price: 500\n  max_price: 100\n"},
		{"log level", "log:\n  level: loud\n"},
		{"base url", "narrative:\n  base_url: not a url\n"},
		{"missing data", "data:\n  clean_path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := LoadWithEnvFile(writeFile(t, "c.yaml", tt.yaml), "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, mlErrors.ErrInvalidInput))
		})
	}
}
