package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 48*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 10*time.Minute, cfg.ResetCodeTTL)
	assert.Equal(t, time.Minute, cfg.ResetCooldown)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.False(t, cfg.AuthRequireResetGrant)
	assert.Equal(t, "*/15 * * * *", cfg.PurgeCron)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("RESET_CODE_TTL", "5m")
	t.Setenv("AUTH_REQUIRE_RESET_GRANT", "true")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5*time.Minute, cfg.ResetCodeTTL)
	assert.True(t, cfg.AuthRequireResetGrant)
	assert.Equal(t, 2525, cfg.SMTPPort)
}

func TestLoadConfigRejectsNonPositiveCodeTTL(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("RESET_CODE_TTL", "0s")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", AppEnv: "staging"}, &buf)
	logger.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "staging", entry["env"])
}

func TestSkipStartup(t *testing.T) {
	t.Setenv(TestModeEnv, "1")
	RefreshTestMode()
	assert.True(t, SkipStartup(nil, "api"))

	t.Setenv(TestModeEnv, "0")
	RefreshTestMode()
	assert.False(t, SkipStartup(nil, "api"))
}
