// Package config provides YAML-based configuration loading for FarmLink.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the config file.
const (
	EnvDatabasePassword = "FARMLINK_DATABASE_PASSWORD"
	EnvSlackBotToken    = "FARMLINK_SLACK_BOT_TOKEN"
	EnvDiscordBotToken  = "FARMLINK_DISCORD_BOT_TOKEN"
)

// Config is the top-level FarmLink configuration, loaded from farmlink.yaml.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Client      ClientConfig      `yaml:"client"`
	Notify      NotifyConfig      `yaml:"notify"`
}

// ServerConfig holds settings for the negotiation API server.
type ServerConfig struct {
	Port      int `yaml:"port"`
	RateLimit int `yaml:"rate_limit"` // requests per minute per identity, 0 disables
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "mysql" or "sqlite"
	Path     string `yaml:"path"`   // sqlite only
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// IdempotencyConfig controls retention of replay keys.
type IdempotencyConfig struct {
	Retention     time.Duration `yaml:"retention"`
	PurgeSchedule string        `yaml:"purge_schedule"` // 5-field cron expression
}

// ClientConfig holds defaults for the negotiation CLI client.
type ClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Locale  string        `yaml:"locale"`
}

// NotifyConfig holds chat notification targets. Empty tokens disable a target.
type NotifyConfig struct {
	Slack   ChatTarget `yaml:"slack"`
	Discord ChatTarget `yaml:"discord"`
}

// ChatTarget is a bot token and the channel events are posted to.
type ChatTarget struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether the target has enough settings to post.
func (t ChatTarget) Enabled() bool {
	return t.BotToken != "" && t.ChannelID != ""
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
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets secrets live outside the YAML file.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvDatabasePassword); v != "" {
		c.Database.Password = v
	}
	if v := getenv(EnvSlackBotToken); v != "" {
		c.Notify.Slack.BotToken = v
	}
	if v := getenv(EnvDiscordBotToken); v != "" {
		c.Notify.Discord.BotToken = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "farmlink.db"
		}
	case "mysql":
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
			c.Database.Database = "farmlink"
		}
	}
	if c.Idempotency.Retention == 0 {
		c.Idempotency.Retention = 72 * time.Hour
	}
	if c.Idempotency.PurgeSchedule == "" {
		c.Idempotency.PurgeSchedule = "0 3 * * *"
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Client.BaseURL = strings.TrimRight(c.Client.BaseURL, "/")
	if c.Client.Timeout == 0 {
		c.Client.Timeout = 10 * time.Second
	}
	if c.Client.Locale == "" {
		c.Client.Locale = "fr"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server.rate_limit must not be negative")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql or sqlite", c.Database.Driver))
	}
	if c.Idempotency.Retention < 0 {
		errs = append(errs, "idempotency.retention must not be negative")
	}
	if len(strings.Fields(c.Idempotency.PurgeSchedule)) != 5 {
		errs = append(errs, fmt.Sprintf("idempotency.purge_schedule %q must have 5 fields", c.Idempotency.PurgeSchedule))
	}
	switch c.Client.Locale {
	case "fr", "en":
	default:
		errs = append(errs, fmt.Sprintf("client.locale %q must be fr or en", c.Client.Locale))
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.ChannelID == "" {
		errs = append(errs, "notify.slack.channel_id is required when a bot token is set")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required when a bot token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
