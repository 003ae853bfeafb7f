package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names an optional YAML file loaded before the environment.
const ConfigFileEnv = "CREDGATE_CONFIG_FILE"

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	// Logging
	LogFile  string `yaml:"log_file"`
	LogReset bool   `yaml:"log_reset"`
	DebugEnv string `yaml:"debug_env"` // name of the env var that enables DEBUG records

	// Flat-file store
	HTPasswdFile     string        `yaml:"htpasswd_file"`
	HTPasswdCacheTTL time.Duration `yaml:"htpasswd_cache_ttl"` // 0 disables the cache
	HTPasswdWatch    bool          `yaml:"htpasswd_watch"`
	BcryptCost       int           `yaml:"bcrypt_cost"`

	// Static identities
	AppSecretFile    string `yaml:"app_secret_file"`
	AppPasswordEnv   string `yaml:"app_password_env"`
	AdminSecretFile  string `yaml:"admin_secret_file"`
	AdminPasswordEnv string `yaml:"admin_password_env"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// Defaults returns the built-in settings.
func Defaults() *Config {
	return &Config{
		LogFile:          "/var/mqm/errors/credgate.json",
		DebugEnv:         "DEBUG",
		HTPasswdFile:     "/etc/mqm/mq.htpasswd",
		HTPasswdWatch:    true,
		BcryptCost:       10,
		AppSecretFile:    "/run/secrets/mqAppPassword",
		AppPasswordEnv:   "MQ_APP_PASSWORD",
		AdminSecretFile:  "/run/secrets/mqAdminPassword",
		AdminPasswordEnv: "MQ_ADMIN_PASSWORD",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CREDGATE_CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.LogReset = getEnvBool("LOG_RESET", cfg.LogReset)
	cfg.DebugEnv = getEnv("DEBUG_ENV", cfg.DebugEnv)

	cfg.HTPasswdFile = getEnv("HTPASSWD_FILE", cfg.HTPasswdFile)
	cfg.HTPasswdCacheTTL = getEnvDuration("HTPASSWD_CACHE_TTL", cfg.HTPasswdCacheTTL)
	cfg.HTPasswdWatch = getEnvBool("HTPASSWD_WATCH", cfg.HTPasswdWatch)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", cfg.BcryptCost)

	cfg.AppSecretFile = getEnv("MQ_APP_SECRET_FILE", cfg.AppSecretFile)
	cfg.AppPasswordEnv = getEnv("MQ_APP_PASSWORD_ENV", cfg.AppPasswordEnv)
	cfg.AdminSecretFile = getEnv("MQ_ADMIN_SECRET_FILE", cfg.AdminSecretFile)
	cfg.AdminPasswordEnv = getEnv("MQ_ADMIN_PASSWORD_ENV", cfg.AdminPasswordEnv)

	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DebugEnv) == "" {
		return fmt.Errorf("%w: DEBUG_ENV must not be empty", ErrInvalidConfig)
	}
	if c.HTPasswdCacheTTL < 0 {
		return fmt.Errorf(
			"%w: invalid HTPASSWD_CACHE_TTL value: %s (must be >= 0)",
			ErrInvalidConfig, c.HTPasswdCacheTTL,
		)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf(
			"%w: invalid BCRYPT_COST value: %d (must be between 4 and 31)",
			ErrInvalidConfig, c.BcryptCost,
		)
	}
	if c.AppSecretFile == "" && c.AppPasswordEnv == "" {
		return fmt.Errorf("%w: app identity has neither a secret file nor an env var", ErrInvalidConfig)
	}
	if c.AdminSecretFile == "" && c.AdminPasswordEnv == "" {
		return fmt.Errorf("%w: admin identity has neither a secret file nor an env var", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
