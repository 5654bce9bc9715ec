package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, "https://www.ncei.noaa.gov/cdo-web/api/v2", cfg.NOAABaseURL)
	assert.Equal(t, "https://waterservices.usgs.gov/nwis", cfg.USGSBaseURL)
	assert.Equal(t, "https://api.synopticdata.com/v2", cfg.SynopticBaseURL)
}

func TestOptions(t *testing.T) {
	cfg := New(
		WithEnvironment("local"),
		WithLogLevel("debug"),
		WithHTTPTimeout(5*time.Second),
		WithMaxRetries(4),
	)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 4, cfg.MaxRetries)
}

func TestWithLogLevelInvalidFallsBackToInfo(t *testing.T) {
	cfg := New(WithLogLevel("nonsense"))
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("NOAA_BASE_URL", "http://localhost:8080")
	t.Setenv("GEOCODER_RELAY_URL", "https://relay.example.com/?url=")

	cfg := LoadFromEnv()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "http://localhost:8080", cfg.NOAABaseURL)
	assert.Equal(t, "https://relay.example.com/?url=", cfg.GeocoderRelayURL)
}
