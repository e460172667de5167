// Package config provides server configuration loaded from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/morezero/capability-facade/pkg/addressing"
)

const logPrefix = "config:LoadConfig"

// Config holds facade server configuration.
type Config struct {
	// ServerName is either a full server identity ("//host/name") or the
	// name part of one. Empty means a random name.
	ServerName string `envconfig:"SERVER_ID"`

	// ProviderLocations are provider documents to load, comma separated.
	// Empty means every built-in provider.
	ProviderLocations []string `envconfig:"PROVIDER_LOCATIONS"`

	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL     string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSEnabled bool   `envconfig:"COMMS_ENABLED" default:"false"`
	COMMSName    string `envconfig:"SERVICE_NAME" default:"capability-facade"`

	NotifySubjectPrefix string `envconfig:"NOTIFY_SUBJECT_PREFIX" default:"facade.notify"`
	ProvidersSubject    string `envconfig:"PROVIDERS_SUBJECT" default:"facade.providers"`
	ControlSubject      string `envconfig:"CONTROL_SUBJECT" default:"facade.control"`

	// Timeouts
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"5s"`

	// Database
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ServerID returns the configured server identity.
func (c *Config) ServerID() addressing.ServerID {
	if strings.HasPrefix(c.ServerName, "//") {
		return addressing.ServerID(c.ServerName)
	}
	return addressing.NewServerID(c.ServerName)
}

// ValidateForServe checks required config when running the facade server.
func (c *Config) ValidateForServe() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("%s - HTTP_PORT %d out of range", logPrefix, c.HTTPPort)
	}
	if c.COMMSEnabled && c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required when COMMS_ENABLED is set", logPrefix)
	}
	if c.RunMigrations && c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required when RUN_MIGRATIONS is set", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}
