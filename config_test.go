package ledgerauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestDefaultConfigValidatesWithSecret(t *testing.T) {
	require.NoError(t, validTestConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short jwt secret", func(c *Config) { c.JWT.Secret = []byte("short") }},
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }},
		{"zero refresh ttl", func(c *Config) { c.Tokens.RefreshTTL = 0 }},
		{"reset outlives refresh", func(c *Config) { c.Tokens.ResetTTL = c.Tokens.RefreshTTL }},
		{"zero lockout attempts", func(c *Config) { c.Lockout.MaxAttempts = 0 }},
		{"zero lockout window", func(c *Config) { c.Lockout.Window = 0 }},
		{"weak argon2 memory", func(c *Config) { c.Password.Memory = 1024 }},
		{"short argon2 salt", func(c *Config) { c.Password.SaltLength = 8 }},
		{"totp digits too small", func(c *Config) { c.TOTP.Digits = 4 }},
		{"totp period too small", func(c *Config) { c.TOTP.Period = 5 }},
		{"totp skew too large", func(c *Config) { c.TOTP.Skew = 10 }},
		{"short totp secret", func(c *Config) { c.TOTP.SecretLength = 10 }},
		{"odd backup length", func(c *Config) { c.Backup.Length = 9 }},
		{"breach without url", func(c *Config) { c.Breach.BaseURL = "" }},
		{"zero retry attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"max delay below base", func(c *Config) { c.Retry.MaxDelay = c.Retry.BaseDelay / 2 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "an-environment-provided-secret-32b!!")
	t.Setenv("AUTH_ACCESS_TTL", "5m")
	t.Setenv("AUTH_LOCKOUT_MAX_ATTEMPTS", "7")
	t.Setenv("AUTH_BREACH_CHECK", "false")

	cfg := ConfigFromEnv()

	assert.Equal(t, []byte("an-environment-provided-secret-32b!!"), cfg.JWT.Secret)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 7, cfg.Lockout.MaxAttempts)
	assert.False(t, cfg.Breach.Enabled)

	// Untouched knobs keep their defaults.
	assert.Equal(t, 30*24*time.Hour, cfg.Tokens.RefreshTTL)
	assert.Equal(t, "pennyledger", cfg.JWT.Issuer)
}

func TestConfigFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("AUTH_ACCESS_TTL", "not-a-duration")
	t.Setenv("AUTH_LOCKOUT_MAX_ATTEMPTS", "many")

	cfg := ConfigFromEnv()
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 5, cfg.Lockout.MaxAttempts)
}
