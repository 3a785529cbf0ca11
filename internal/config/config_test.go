package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://localhost/orgadmin")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4001, cfg.Port)
	assert.Equal(t, "complypay", cfg.DefaultGateway)
	assert.Equal(t, "BRL", cfg.Currency)
	assert.Equal(t, "/login", cfg.PostPaymentRedirect)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 1500*time.Millisecond, cfg.SimulatedLatency)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
}

func TestLoadRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/orgadmin")
	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "x")
	t.Setenv("DATABASE_URL", "")
	_, err = Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadStripeNeedsKey(t *testing.T) {
	setRequired(t)
	t.Setenv("DEFAULT_GATEWAY", "stripe")
	t.Setenv("STRIPE_SECRET_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "STRIPE_SECRET_KEY")

	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "stripe", cfg.DefaultGateway)
}

func TestLoadKafkaBrokers(t *testing.T) {
	setRequired(t)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}
