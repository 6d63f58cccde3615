package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "file", c.Artifacts.Backend)
	assert.Equal(t, 1.1, c.Artifacts.OverwriteTolerance)
	assert.Equal(t, 50, c.Registry.MaxSize)
	assert.Equal(t, time.Hour, c.Registry.TTL)
	assert.Equal(t, []string{"localhost:9092"}, c.Kafka.Brokers)
	assert.False(t, c.Kafka.Enabled)
	assert.False(t, c.Forecast.Predictor.Rescale.Enabled)
	assert.Equal(t, 30, c.Forecast.Predictor.MaxHorizon)
	assert.Len(t, c.Forecast.Predictor.QualityTiers, 4)
	assert.Equal(t, 2.0, c.Forecast.Ensemble.OverfitMild)
	assert.Equal(t, 3.0, c.Forecast.Ensemble.OverfitSevere)
	assert.Equal(t, 0.15, c.Forecast.Ensemble.OverfitSeverePenalty)
}

func TestParseOverridesAndDefaults(t *testing.T) {
	c, err := Parse([]byte(`
server:
  port: 9090
artifacts:
  backend: badger
  badger_path: /var/lib/marketpulse
forecast:
  predictor:
    max_horizon: 14
    rescale:
      enabled: true
`))
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "badger", c.Artifacts.Backend)
	assert.Equal(t, "/var/lib/marketpulse", c.Artifacts.BadgerPath)
	assert.Equal(t, 14, c.Forecast.Predictor.MaxHorizon)
	assert.True(t, c.Forecast.Predictor.Rescale.Enabled)
	assert.Equal(t, 1.5, c.Forecast.Predictor.Rescale.MaxFactor)
	assert.Equal(t, "retrain", c.Queue.Name)
}

func TestParseRejectsInvalid(t *testing.T) {
	for name, doc := range map[string]string{
		"backend":     "artifacts:\n  backend: s3\n",
		"tolerance":   "artifacts:\n  overwrite_tolerance: 0.5\n",
		"momentum":    "forecast:\n  momentum:\n    up_strong: 0.01\n    up_mild: 0.02\n",
		"compression": "kafka:\n  compression: brotli\n",
		"horizon":     "forecast:\n  predictor:\n    max_horizon: 31\n",
		"overfit":     "forecast:\n  ensemble:\n    overfit_mild: 4\n    overfit_severe: 3\n",
		"yaml":        "server: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o600))

	t.Setenv("MP_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MP_ARTIFACT_DIR", "/tmp/models")
	t.Setenv("MP_PORTFOLIO_RESCALE", "true")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "/tmp/models", c.Artifacts.Dir)
	assert.True(t, c.Forecast.Predictor.Rescale.Enabled)

	t.Setenv("MP_PORTFOLIO_RESCALE", "sometimes")
	_, err = LoadWithEnv("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
