// Package config provides YAML-based configuration loading for jirabridge.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level jirabridge configuration, loaded from config.yaml.
type Config struct {
	Environment string          `yaml:"environment"`
	BaseURL     string          `yaml:"base_url"`
	Database    DatabaseConfig  `yaml:"database"`
	HTTP        HTTPConfig      `yaml:"http"`
	Import      ImportConfig    `yaml:"import"`
	Notify      NotifyConfig    `yaml:"notify"`
	Dashboard   DashboardConfig `yaml:"dashboard"`
}

// DatabaseConfig holds connection settings for the MySQL store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// HTTPConfig controls outbound calls to the remote tracker.
type HTTPConfig struct {
	TimeoutSeconds int         `yaml:"timeout_seconds"`
	Proxy          ProxyConfig `yaml:"proxy"`
}

// Timeout returns the per-request timeout as a duration.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ProxyConfig is an optional HTTP proxy applied to every remote call.
type ProxyConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ImportConfig controls the batch import command and daemon.
type ImportConfig struct {
	// Schedule is a 5-field cron expression used by the daemon.
	Schedule    string `yaml:"schedule"`
	DownloadDir string `yaml:"download_dir"`
}

// NotifyConfig holds the Slack incoming-webhook used for import summaries.
type NotifyConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
}

// DashboardConfig holds settings for the status HTTP server.
type DashboardConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Database == "" {
		c.Database.Database = "jirabridge"
	}
	if c.HTTP.TimeoutSeconds == 0 {
		c.HTTP.TimeoutSeconds = 10
	}
	if c.Import.Schedule == "" {
		c.Import.Schedule = "*/30 * * * *"
	}
	if c.Import.DownloadDir == "" {
		c.Import.DownloadDir = os.TempDir()
	}
	if c.Dashboard.Addr == "" {
		c.Dashboard.Addr = "127.0.0.1:8090"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Database.Database == "" {
		errs = append(errs, "database.database is required")
	}
	if c.HTTP.Proxy.Host != "" && c.HTTP.Proxy.Port == 0 {
		errs = append(errs, "http.proxy.port is required when http.proxy.host is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsProduction reports whether the production environment guard passes.
// Sync commands and event handlers are no-ops outside production.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod"
}
