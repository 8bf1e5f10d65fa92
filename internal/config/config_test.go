package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "Development")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("WEBHOOK_TOLERANCE", "2m")
	t.Setenv("SNOWFLAKE_NODE", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Webhook.SignatureTolerance)
	assert.Equal(t, 30*time.Second, cfg.Webhook.LockTTL)
	assert.Equal(t, int64(7), cfg.SnowflakeNode)
	assert.Equal(t, "billingcore", cfg.AppName)
	assert.Equal(t, 30, cfg.Webhook.RetentionDays)
	assert.Equal(t, time.Hour, cfg.Webhook.RetentionInterval)
	assert.Equal(t, "http/protobuf", cfg.OTel.Protocol)
}

func TestLoadRejectsNegativeRetention(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("WEBHOOK_RETENTION_DAYS", "-1")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadOTelProtocol(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", " GRPC ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "grpc", cfg.OTel.Protocol)

	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "thrift")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
}

func TestProductionRequiresVaultKey(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("VAULT_AES_KEY", "")

	_, err := Load()
	require.Error(t, err)
}
