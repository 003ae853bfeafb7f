package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return Defaults() }

	tests := []struct {
		name        string
		config      *Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "defaults",
			config:      valid(),
			expectError: false,
		},
		{
			name: "cache enabled",
			config: func() *Config {
				c := valid()
				c.HTPasswdCacheTTL = 30 * time.Second
				return c
			}(),
			expectError: false,
		},
		{
			name: "negative cache ttl",
			config: func() *Config {
				c := valid()
				c.HTPasswdCacheTTL = -time.Second
				return c
			}(),
			expectError: true,
			errorMsg:    "invalid HTPASSWD_CACHE_TTL value: -1s",
		},
		{
			name: "bcrypt cost too low",
			config: func() *Config {
				c := valid()
				c.BcryptCost = 3
				return c
			}(),
			expectError: true,
			errorMsg:    "invalid BCRYPT_COST value: 3",
		},
		{
			name: "bcrypt cost too high",
			config: func() *Config {
				c := valid()
				c.BcryptCost = 32
				return c
			}(),
			expectError: true,
			errorMsg:    "invalid BCRYPT_COST value: 32",
		},
		{
			name: "empty debug env",
			config: func() *Config {
				c := valid()
				c.DebugEnv = " "
				return c
			}(),
			expectError: true,
			errorMsg:    "DEBUG_ENV must not be empty",
		},
		{
			name: "app identity without source",
			config: func() *Config {
				c := valid()
				c.AppSecretFile = ""
				c.AppPasswordEnv = ""
				return c
			}(),
			expectError: true,
			errorMsg:    "app identity",
		},
		{
			name: "admin env only",
			config: func() *Config {
				c := valid()
				c.AdminSecretFile = ""
				return c
			}(),
			expectError: false,
		},
		{
			name: "admin identity without source",
			config: func() *Config {
				c := valid()
				c.AdminSecretFile = ""
				c.AdminPasswordEnv = ""
				return c
			}(),
			expectError: true,
			errorMsg:    "admin identity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	for _, key := range []string{
		"LOG_FILE", "LOG_RESET", "DEBUG_ENV", "HTPASSWD_FILE", "HTPASSWD_CACHE_TTL",
		"HTPASSWD_WATCH", "BCRYPT_COST", "MQ_APP_SECRET_FILE", "MQ_APP_PASSWORD_ENV",
		"MQ_ADMIN_SECRET_FILE", "MQ_ADMIN_PASSWORD_ENV", "METRICS_ENABLED",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, "/etc/mqm/mq.htpasswd", cfg.HTPasswdFile)
	assert.Equal(t, "/run/secrets/mqAppPassword", cfg.AppSecretFile)
	assert.Equal(t, "MQ_ADMIN_PASSWORD", cfg.AdminPasswordEnv)
	assert.True(t, cfg.HTPasswdWatch)
	assert.Zero(t, cfg.HTPasswdCacheTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("LOG_FILE", "/tmp/auth.json")
	t.Setenv("LOG_RESET", "1")
	t.Setenv("DEBUG_ENV", "MQS_DEBUG")
	t.Setenv("HTPASSWD_CACHE_TTL", "45s")
	t.Setenv("HTPASSWD_WATCH", "false")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("METRICS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/auth.json", cfg.LogFile)
	assert.True(t, cfg.LogReset)
	assert.Equal(t, "MQS_DEBUG", cfg.DebugEnv)
	assert.Equal(t, 45*time.Second, cfg.HTPasswdCacheTTL)
	assert.False(t, cfg.HTPasswdWatch)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoad_MalformedEnvKeepsDefault(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("HTPASSWD_CACHE_TTL", "soon")
	t.Setenv("BCRYPT_COST", "high")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.HTPasswdCacheTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
htpasswd_file: /srv/mq.htpasswd
htpasswd_cache_ttl: 2m
bcrypt_cost: 11
app_secret_file: /srv/app
`), 0o600))

	t.Setenv(ConfigFileEnv, path)
	t.Setenv("HTPASSWD_FILE", "")
	t.Setenv("HTPASSWD_CACHE_TTL", "")
	t.Setenv("MQ_APP_SECRET_FILE", "")
	t.Setenv("BCRYPT_COST", "13")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/mq.htpasswd", cfg.HTPasswdFile)
	assert.Equal(t, 2*time.Minute, cfg.HTPasswdCacheTTL)
	assert.Equal(t, "/srv/app", cfg.AppSecretFile)
	// environment wins over the file
	assert.Equal(t, 13, cfg.BcryptCost)
	// untouched keys keep their defaults
	assert.Equal(t, "/run/secrets/mqAdminPassword", cfg.AdminSecretFile)
}

func TestLoad_YAMLErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("bcrypt_cost: [1, 2"), 0o600))
		t.Setenv(ConfigFileEnv, path)
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config file")
	})
}
