package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Minute, cfg.GraceWindow)
	assert.Equal(t, 5.0, cfg.MatchRadiusKm)
	assert.Equal(t, 10, cfg.MatchLimit)
	assert.Equal(t, 2*time.Hour, cfg.MatchWindow)
	assert.Equal(t, "trip-events", cfg.TripEventsTopic)
	assert.Equal(t, 90*time.Second, cfg.PresenceTTL)
	assert.False(t, cfg.RunMigrations)
}

func TestLoadServerConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("TRIP_GRACE_WINDOW", "10m")
	t.Setenv("MATCH_RADIUS_KM", "2.5")
	t.Setenv("MATCH_LIMIT", "3")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("MIGRATE", "true")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Minute, cfg.GraceWindow)
	assert.Equal(t, 2.5, cfg.MatchRadiusKm)
	assert.Equal(t, 3, cfg.MatchLimit)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.RunMigrations)
}

func TestLoadServerConfigInvalidValues(t *testing.T) {
	t.Setenv("TRIP_GRACE_WINDOW", "soon")
	t.Setenv("MATCH_LIMIT", "0")

	_, err := LoadServerConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRIP_GRACE_WINDOW")
	assert.Contains(t, err.Error(), "MATCH_LIMIT")
}

func TestLoadPresenceConfigDefaults(t *testing.T) {
	cfg, err := LoadPresenceConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "driver-presence", cfg.Topic)
	assert.Equal(t, "presence-projector", cfg.Group)
	assert.Equal(t, 90*time.Second, cfg.PresenceTTL)
}

func TestLoadSweeperConfigInterval(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "30s")
	cfg, err := LoadSweeperConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Interval)

	t.Setenv("SWEEP_INTERVAL", "0s")
	_, err = LoadSweeperConfig()
	assert.Error(t, err)
}
