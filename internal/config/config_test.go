package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORE_DRIVER", "KAFKA_BROKERS", "DEFAULT_CURRENCY", "PLATFORM_FEE_BPS",
		"POST_TIMEOUT_MS", "RECONCILE_INTERVAL_SECONDS"} {
		t.Setenv(key, "")
	}
	cfg := Load()

	require.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	require.Equal(t, "NGN", cfg.DefaultCurrency)
	require.Equal(t, 500, cfg.PlatformFeeBPS)
	require.Equal(t, 5*time.Second, cfg.PostTimeout)
	require.Equal(t, 5*time.Minute, cfg.ReconcileInterval)
	require.Empty(t, cfg.KafkaBrokers)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("DEFAULT_CURRENCY", "usd")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	t.Setenv("POST_TIMEOUT_MS", "250")
	t.Setenv("PLATFORM_FEE_BPS", "not-a-number")
	t.Setenv("ESCROW_RELEASE_POLICY", "PER_TRANCHE")
	cfg := Load()

	require.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	require.Equal(t, "USD", cfg.DefaultCurrency)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 250*time.Millisecond, cfg.PostTimeout)
	require.Equal(t, 500, cfg.PlatformFeeBPS)
	require.Equal(t, "per_tranche", cfg.EscrowReleasePolicy)
}

func TestValidateNormalizes(t *testing.T) {
	cfg := &Config{
		StoreDriver:         "sqlite",
		EscrowReleasePolicy: "weekly",
		VATBPS:              9000,
		WHTBPS:              2000,
	}
	cfg.Validate(zap.NewNop())

	require.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	require.Equal(t, "single", cfg.EscrowReleasePolicy)
	require.Zero(t, cfg.VATBPS)
	require.Zero(t, cfg.WHTBPS)
	require.Equal(t, 5*time.Second, cfg.PostTimeout)
	require.Equal(t, 5*time.Minute, cfg.ReconcileInterval)
	require.Equal(t, 15*time.Minute, cfg.InvariantCheckInterval)
}
