package config_test

import (
	"testing"
	"time"

	"github.com/loopwork-studio/agency-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "INV", cfg.Workflow.InvoicePrefix)
	assert.Equal(t, 50.0, cfg.Workflow.DefaultDepositPercentage)
	assert.False(t, cfg.Workflow.AllowAgencyApproval)
	assert.Equal(t, "memory", cfg.RateLimit.Store)
	assert.Equal(t, 10, cfg.RateLimit.InvoiceCreatePerMinute)
	assert.Equal(t, 12*time.Second, cfg.Gateway.TimeoutDuration())
	assert.Equal(t, time.Minute, cfg.RateLimit.SweepIntervalDuration())
	assert.NotEmpty(t, cfg.Jobs.ReconciliationCron)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("RATELIMIT_STORE", "redis")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "redis", cfg.RateLimit.Store)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	db := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "agency", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=agency sslmode=disable", db.ConnectionString())
}
