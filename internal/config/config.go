package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	API          APIConfig          `yaml:"api"`
	Database     DatabaseConfig     `yaml:"database"`
	NATS         NATSConfig         `yaml:"nats"`
	JWT          JWTConfig          `yaml:"jwt"`
	Auth         AuthConfig         `yaml:"auth"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Log          LogConfig          `yaml:"log"`
}

// ServerConfig represents server identity configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL               string        `yaml:"url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// JWTConfig represents session token configuration
type JWTConfig struct {
	Secret         string        `yaml:"secret"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
}

// AuthConfig represents API-key authentication configuration
type AuthConfig struct {
	// Process-wide master secret; requests presenting it resolve as
	// the global admin
	MasterKey string `yaml:"master_key"`

	// Prefix of tenant API secrets, used as a cheap format pre-check
	// before hitting the store
	APIKeyPrefix string `yaml:"api_key_prefix"`

	// Allows reverse instance lookup by token on listing operations
	PersistInstanceData bool `yaml:"persist_instance_data"`
}

// SubscriptionConfig represents subscription lifecycle configuration
type SubscriptionConfig struct {
	TrialDays         int           `yaml:"trial_days"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	ExpiryWarningDays int           `yaml:"expiry_warning_days"`
	VerificationTTL   time.Duration `yaml:"verification_ttl"`
	PasswordResetTTL  time.Duration `yaml:"password_reset_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if masterKey := os.Getenv("MASTER_API_KEY"); masterKey != "" {
		c.Auth.MasterKey = masterKey
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}
}

// setDefaults fills in defaults for unset values
func (c *Config) setDefaults() {
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.APIKeyPrefix == "" {
		c.Auth.APIKeyPrefix = "mgk_"
	}
	if c.Subscription.TrialDays == 0 {
		c.Subscription.TrialDays = 4
	}
	if c.Subscription.SweepInterval == 0 {
		c.Subscription.SweepInterval = time.Hour
	}
	if c.Subscription.ExpiryWarningDays == 0 {
		c.Subscription.ExpiryWarningDays = 7
	}
	if c.Subscription.VerificationTTL == 0 {
		c.Subscription.VerificationTTL = 24 * time.Hour
	}
	if c.Subscription.PasswordResetTTL == 0 {
		c.Subscription.PasswordResetTTL = time.Hour
	}
}
