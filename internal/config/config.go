package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Batch    BatchConfig    `mapstructure:"batch" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0,lt=44640"`
	BCryptCost           int    `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
}

// BatchConfig contains the tunables of batch allocation and claim expiry.
type BatchConfig struct {
	Size                 int `mapstructure:"size" validate:"required,gt=0"`
	ClaimTTLMinutes      int `mapstructure:"claim_ttl_minutes" validate:"required,gt=0"`
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes" validate:"required,gt=0"`
}

// ClaimTTL returns the claim lifetime as a duration.
func (b BatchConfig) ClaimTTL() time.Duration {
	return time.Duration(b.ClaimTTLMinutes) * time.Minute
}

// SweepInterval returns the expiry sweep period as a duration.
func (b BatchConfig) SweepInterval() time.Duration {
	return time.Duration(b.SweepIntervalMinutes) * time.Minute
}
