package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var configEnv = []string{
	"SERVER_ID", "PROVIDER_LOCATIONS",
	"COMMS_URL", "COMMS_ENABLED", "SERVICE_NAME",
	"NOTIFY_SUBJECT_PREFIX", "PROVIDERS_SUBJECT", "CONTROL_SUBJECT", "REQUEST_TIMEOUT",
	"DATABASE_URL", "RUN_MIGRATIONS", "MIGRATION_PATH",
	"HTTP_PORT", "HEALTH_CHECK_TIMEOUT", "LOG_LEVEL",
}

func clearEnv() {
	for _, env := range configEnv {
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.ServerName != "" {
		t.Errorf("config:config_test - ServerName = %q, want empty", cfg.ServerName)
	}
	if len(cfg.ProviderLocations) != 0 {
		t.Errorf("config:config_test - ProviderLocations = %v, want none", cfg.ProviderLocations)
	}
	if cfg.COMMSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - COMMSURL = %q, want %q", cfg.COMMSURL, "nats://127.0.0.1:4222")
	}
	if cfg.COMMSEnabled {
		t.Error("config:config_test - expected COMMSEnabled=false by default")
	}
	if cfg.COMMSName != "capability-facade" {
		t.Errorf("config:config_test - COMMSName = %q, want %q", cfg.COMMSName, "capability-facade")
	}
	if cfg.NotifySubjectPrefix != "facade.notify" {
		t.Errorf("config:config_test - NotifySubjectPrefix = %q", cfg.NotifySubjectPrefix)
	}
	if cfg.ProvidersSubject != "facade.providers" {
		t.Errorf("config:config_test - ProvidersSubject = %q", cfg.ProvidersSubject)
	}
	if cfg.ControlSubject != "facade.control" {
		t.Errorf("config:config_test - ControlSubject = %q", cfg.ControlSubject)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("config:config_test - DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.RunMigrations {
		t.Error("config:config_test - expected RunMigrations=false by default")
	}
	if cfg.MigrationPath != "migrations" {
		t.Errorf("config:config_test - MigrationPath = %q, want %q", cfg.MigrationPath, "migrations")
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("config:config_test - HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.HealthCheckTimeout != 5*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 5s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("config:config_test - defaults should be servable: %v", err)
	}
	if err := cfg.ValidateForDB(); err == nil {
		t.Error("config:config_test - expected ValidateForDB to need DATABASE_URL")
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv()
	overrides := map[string]string{
		"SERVER_ID":             "//build-01/facade",
		"PROVIDER_LOCATIONS":    "/etc/facade/providers.yaml,nats://127.0.0.1:4222/facade.providers",
		"COMMS_URL":             "nats://custom:4222",
		"COMMS_ENABLED":         "true",
		"SERVICE_NAME":          "test-server",
		"NOTIFY_SUBJECT_PREFIX": "jobs.notify",
		"PROVIDERS_SUBJECT":     "jobs.providers",
		"CONTROL_SUBJECT":       "jobs.control",
		"REQUEST_TIMEOUT":       "10s",
		"DATABASE_URL":          "postgres://test@localhost/test",
		"RUN_MIGRATIONS":        "true",
		"MIGRATION_PATH":        "/tmp/migrations",
		"HTTP_PORT":             "9090",
		"HEALTH_CHECK_TIMEOUT":  "10s",
		"LOG_LEVEL":             "debug",
	}
	for key, val := range overrides {
		os.Setenv(key, val)
	}
	defer clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if got := cfg.ServerID(); got != "//build-01/facade" {
		t.Errorf("config:config_test - ServerID() = %q", got)
	}
	if got := strings.Join(cfg.ProviderLocations, "|"); got != "/etc/facade/providers.yaml|nats://127.0.0.1:4222/facade.providers" {
		t.Errorf("config:config_test - ProviderLocations = %q", got)
	}
	if cfg.COMMSURL != "nats://custom:4222" || !cfg.COMMSEnabled || cfg.COMMSName != "test-server" {
		t.Errorf("config:config_test - COMMS = %q %v %q", cfg.COMMSURL, cfg.COMMSEnabled, cfg.COMMSName)
	}
	if cfg.NotifySubjectPrefix != "jobs.notify" || cfg.ProvidersSubject != "jobs.providers" || cfg.ControlSubject != "jobs.control" {
		t.Errorf("config:config_test - subjects = %q %q %q", cfg.NotifySubjectPrefix, cfg.ProvidersSubject, cfg.ControlSubject)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	if cfg.DatabaseURL != "postgres://test@localhost/test" || !cfg.RunMigrations || cfg.MigrationPath != "/tmp/migrations" {
		t.Errorf("config:config_test - database = %q %v %q", cfg.DatabaseURL, cfg.RunMigrations, cfg.MigrationPath)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("config:config_test - HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.HealthCheckTimeout != 10*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 10s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	clearEnv()
	defer clearEnv()

	os.Setenv("HTTP_PORT", "eighty")
	if _, err := LoadConfig(); err == nil {
		t.Error("config:config_test - expected error for non-numeric HTTP_PORT")
	}
	os.Unsetenv("HTTP_PORT")

	os.Setenv("REQUEST_TIMEOUT", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Error("config:config_test - expected error for invalid REQUEST_TIMEOUT")
	}
}

func TestConfig_ServerID(t *testing.T) {
	host, _ := os.Hostname()
	if host == "" {
		host = "localhost"
	}

	named := (&Config{ServerName: "facade"}).ServerID()
	if string(named) != "//"+host+"/facade" {
		t.Errorf("config:config_test - ServerID() = %q, want //%s/facade", named, host)
	}

	a := (&Config{}).ServerID()
	b := (&Config{}).ServerID()
	if a == b {
		t.Errorf("config:config_test - generated server ids should differ, both %q", a)
	}
	if !strings.HasPrefix(string(a), "//"+host+"/") {
		t.Errorf("config:config_test - generated id %q lacks host", a)
	}
}

func TestValidateForServe(t *testing.T) {
	valid := func() *Config {
		return &Config{RequestTimeout: time.Second, HealthCheckTimeout: time.Second, HTTPPort: 8080}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"negative health timeout", func(c *Config) { c.HealthCheckTimeout = -time.Second }, true},
		{"port out of range", func(c *Config) { c.HTTPPort = 70000 }, true},
		{"comms without url", func(c *Config) { c.COMMSEnabled = true }, true},
		{"migrations without database", func(c *Config) { c.RunMigrations = true }, true},
		{"migrations with database", func(c *Config) { c.RunMigrations = true; c.DatabaseURL = "postgres://x" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.ValidateForServe()
			if (err != nil) != tt.wantErr {
				t.Errorf("config:config_test - ValidateForServe() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
