// Package config loads the travel agent configuration from YAML and the
// environment.
package config

import (
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ConfigError describes a configuration problem.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Oracle: OracleConfig{
			Model: "gpt-4o",
		},
		Tools: ToolsConfig{
			BookingURL:           "http://booking-agent:9001/mcp",
			PaymentURL:           "http://payment-agent:9002/mcp",
			ConnectRetries:       30,
			ConnectDelaySeconds:  2.0,
			InvokeTimeoutSeconds: 30.0,
		},
		Agent: AgentConfig{
			MaxIterations:    20,
			StreamChunkBytes: 1,
			StreamDelayMs:    20,
		},
		Session: SessionConfig{
			Store:       "memory",
			Path:        "travel-agent.db",
			IdleMinutes: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}

// Load reads the optional config file, then applies environment overrides.
// A missing file yields defaults plus environment only; a malformed file is
// an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
			}
		case os.IsNotExist(err):
			// defaults + env only
		default:
			return cfg, err
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to read environment: " + err.Error()}
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// applyDefaults backfills zero values left by an explicit-but-partial file.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Oracle.Model == "" {
		cfg.Oracle.Model = def.Oracle.Model
	}
	if cfg.Tools.BookingURL == "" {
		cfg.Tools.BookingURL = def.Tools.BookingURL
	}
	if cfg.Tools.PaymentURL == "" {
		cfg.Tools.PaymentURL = def.Tools.PaymentURL
	}
	if cfg.Tools.ConnectRetries == 0 {
		cfg.Tools.ConnectRetries = def.Tools.ConnectRetries
	}
	if cfg.Tools.ConnectDelaySeconds == 0 {
		cfg.Tools.ConnectDelaySeconds = def.Tools.ConnectDelaySeconds
	}
	if cfg.Tools.InvokeTimeoutSeconds == 0 {
		cfg.Tools.InvokeTimeoutSeconds = def.Tools.InvokeTimeoutSeconds
	}
	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = def.Agent.MaxIterations
	}
	if cfg.Agent.StreamChunkBytes == 0 {
		cfg.Agent.StreamChunkBytes = def.Agent.StreamChunkBytes
	}
	if cfg.Agent.StreamDelayMs == 0 {
		cfg.Agent.StreamDelayMs = def.Agent.StreamDelayMs
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = def.Session.Store
	}
	if cfg.Session.Path == "" {
		cfg.Session.Path = def.Session.Path
	}
	if cfg.Session.IdleMinutes == 0 {
		cfg.Session.IdleMinutes = def.Session.IdleMinutes
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Style == "" {
		cfg.Logging.Style = def.Logging.Style
	}
}
