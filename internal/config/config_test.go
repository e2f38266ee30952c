package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("unit-test")
	require.NoError(t, err)

	assert.Equal(t, "unit-test", cfg.Environment)
	assert.Equal(t, 60*time.Second, cfg.App.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.App.PollInterval)
	assert.Equal(t, 2*time.Hour, cfg.App.SessionTTL)
	assert.Empty(t, cfg.DB.URL)
	assert.EqualValues(t, 3, cfg.ConsultationAPICfg.Retry.Attempts)
	assert.EqualValues(t, 5, cfg.ConsultationAPICfg.Breaker.ConsecutiveFailures)
	assert.Equal(t, "consultation", cfg.NATSCfg.SubjectPrefix)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_POLL_INTERVAL", "3s")
	t.Setenv("CONSULTATION_API_SERVICE_URL", "http://backend:9000")
	t.Setenv("CONSULTATION_API_RETRY_ATTEMPTS", "5")
	t.Setenv("TEMPLATE_API_TOKEN", "tkn")
	t.Setenv("ENABLE_MOCKS", "true")

	cfg, err := Load("unit-test")
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.App.PollInterval)
	assert.Equal(t, "http://backend:9000", cfg.ConsultationAPICfg.Url)
	assert.EqualValues(t, 5, cfg.ConsultationAPICfg.Retry.Attempts)
	assert.Equal(t, "tkn", cfg.TemplateAPICfg.Token)
	assert.True(t, cfg.EnableMocks)
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("APP_POLL_INTERVAL", "10ms")
	t.Setenv("TELEGRAM_RATE_LIMIT_BURST", "100")

	_, err := Load("unit-test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_POLL_INTERVAL")
	assert.Contains(t, err.Error(), "TELEGRAM_RATE_LIMIT_BURST")
}
