package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, DispatchPool, cfg.DispatchMode)
	require.Equal(t, "StravaWebhookRideout", cfg.VerifyToken)
	require.Equal(t, 200, cfg.Provider.PageSize)
	require.Equal(t, 10*time.Second, cfg.Provider.Timeout)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "https://www.strava.com/api/v3/oauth/token", cfg.Provider.TokenURL())
	require.Equal(t, "https://www.strava.com/oauth/authorize", cfg.Provider.AuthURL())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:1, ,b:2 ")
	t.Setenv("PROVIDER_PAGE_SIZE", "50")
	t.Setenv("WORKER_COUNT", "-3")
	t.Setenv("STRAVA_CLIENT_ID", "123")
	t.Setenv("SWEEP_INTERVAL", "0s")

	cfg := Load()

	require.Equal(t, []string{"a:1", "b:2"}, cfg.KafkaBrokers)
	require.Equal(t, ProviderPageSize, cfg.Provider.PageSize, "page size is fixed")
	require.Equal(t, 4, cfg.WorkerCount)
	require.Equal(t, "123", cfg.Provider.ClientID)
	require.Zero(t, cfg.SweepInterval)
}
