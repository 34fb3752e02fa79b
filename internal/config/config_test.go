package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
mysql:
  host: db.internal
  port: 3306
kafka:
  brokers: ["k1:9092", "k2:9092"]
business:
  compliance:
    blocked_countries: [KP]
  fees:
    by_type:
      SWIFT_TRANSFER:
        percent: 0.005
        min: 15
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesFileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.MySQL.Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"KP"}, cfg.Business.Compliance.BlockedCountries)

	// untouched sections fall back to defaults
	assert.Equal(t, "payment-events", cfg.Kafka.Topic.PaymentEvents)
	assert.Equal(t, 3, cfg.Business.Payment.MaxRetries)
	assert.Equal(t, 80, cfg.Business.Fraud.RejectScore)
	assert.Equal(t, 100, cfg.Jobs.BatchSize)

	rule, ok := cfg.Business.Fees.ByType["swift_transfer"]
	require.True(t, ok, "viper lowercases map keys")
	assert.Equal(t, 0.005, rule.Percent)
	assert.Equal(t, 15.0, rule.Min)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PAYCORE_MYSQL_HOST", "override.internal")
	t.Setenv("PAYCORE_LOCK_BACKEND", "local")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "override.internal", cfg.MySQL.Host)
	assert.Equal(t, "local", cfg.Lock.Backend)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadReturnsIndependentConfigs(t *testing.T) {
	first, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	second, err := Load(writeConfig(t, "server:\n  port: 7070\n"))
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 9090, first.Server.Port)
	assert.Equal(t, 7070, second.Server.Port)
}
