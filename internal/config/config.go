// Package config provides YAML-based configuration loading for Switchyard.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Switchyard configuration, loaded from switchyard.yaml.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

// ServiceConfig holds HTTP listener settings and the instance identity used
// when claiming runs.
type ServiceConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	InstanceID string `yaml:"instance_id"`
}

// DatabaseConfig holds connection settings for the work item store.
// Driver "mysql" is the production path; "sqlite" serves local development.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Path     string `yaml:"path"`
}

// DispatchConfig holds the trusted-caller secret and runner handoff settings.
type DispatchConfig struct {
	Secret            string `yaml:"secret"`
	SecretFile        string `yaml:"secret_file"`
	RunnerURL         string `yaml:"runner_url"`
	HandoffTimeoutSec int    `yaml:"handoff_timeout_sec"`
}

// SweepConfig controls the periodic queue sweep.
type SweepConfig struct {
	Disabled bool   `yaml:"disabled"`
	Schedule string `yaml:"schedule"`
}

// AlertsConfig selects the operational alert channel. Platform is one of
// "", "none", "slack", "discord".
type AlertsConfig struct {
	Platform       string `yaml:"platform"`
	SlackToken     string `yaml:"slack_token"`
	SlackChannel   string `yaml:"slack_channel"`
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel"`
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

// ResolveSecret returns the dispatch secret, reading SecretFile when the
// inline secret is not set.
func (c *DispatchConfig) ResolveSecret() (string, error) {
	if c.Secret != "" {
		return c.Secret, nil
	}
	data, err := os.ReadFile(c.SecretFile)
	if err != nil {
		return "", fmt.Errorf("config: read secret file %s: %w", c.SecretFile, err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("config: secret file %s is empty", c.SecretFile)
	}
	return secret, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Service.Host == "" {
		c.Service.Host = "127.0.0.1"
	}
	if c.Service.Port == 0 {
		c.Service.Port = 8484
	}
	if c.Service.InstanceID == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			c.Service.InstanceID = host
		} else {
			c.Service.InstanceID = "switchyard"
		}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Database == "" {
		c.Database.Database = "switchyard"
	}
	if c.Database.Path == "" {
		c.Database.Path = "switchyard.db"
	}
	if c.Dispatch.HandoffTimeoutSec == 0 {
		c.Dispatch.HandoffTimeoutSec = 10
	}
	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = "* * * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of mysql, sqlite", c.Database.Driver))
	}
	if c.Dispatch.Secret == "" && c.Dispatch.SecretFile == "" {
		errs = append(errs, "dispatch.secret or dispatch.secret_file is required")
	}
	if c.Dispatch.RunnerURL == "" {
		errs = append(errs, "dispatch.runner_url is required")
	}
	switch c.Alerts.Platform {
	case "", "none":
	case "slack":
		if c.Alerts.SlackToken == "" || c.Alerts.SlackChannel == "" {
			errs = append(errs, "alerts.slack_token and alerts.slack_channel are required for platform slack")
		}
	case "discord":
		if c.Alerts.DiscordToken == "" || c.Alerts.DiscordChannel == "" {
			errs = append(errs, "alerts.discord_token and alerts.discord_channel are required for platform discord")
		}
	default:
		errs = append(errs, fmt.Sprintf("alerts.platform %q is not one of none, slack, discord", c.Alerts.Platform))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
