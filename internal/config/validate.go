package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 1-65535, got %d", cfg.Server.Port),
		})
	}

	if cfg.Oracle.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "oracle.apiKey",
			Message: "required (set OPENAI_API_KEY)",
		})
	}
	if cfg.Oracle.Model == "" {
		issues = append(issues, ValidationIssue{
			Path:    "oracle.model",
			Message: "model is required",
		})
	}

	for _, ep := range []struct{ path, raw string }{
		{"tools.bookingUrl", cfg.Tools.BookingURL},
		{"tools.paymentUrl", cfg.Tools.PaymentURL},
	} {
		u, err := url.Parse(ep.raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, ValidationIssue{
				Path:    ep.path,
				Message: fmt.Sprintf("must be an absolute URL, got %q", ep.raw),
			})
		}
	}

	if cfg.Tools.ConnectRetries < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "tools.connectRetries",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Tools.ConnectRetries),
		})
	}
	if cfg.Tools.ConnectDelaySeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "tools.connectDelaySeconds",
			Message: "must not be negative",
		})
	}

	if cfg.Agent.MaxIterations < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.maxIterations",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Agent.MaxIterations),
		})
	}

	validStores := []string{"memory", "sqlite"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}
	validStyles := []string{"pretty", "json"}
	if cfg.Logging.Style != "" && !slices.Contains(validStyles, cfg.Logging.Style) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.style",
			Message: fmt.Sprintf("must be one of %v, got %q", validStyles, cfg.Logging.Style),
		})
	}

	return issues
}
