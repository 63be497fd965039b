package config

import "time"

// Config is the root configuration for the travel agent gateway.
// Values merge in order: defaults, YAML file, environment variables.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Oracle  OracleConfig  `yaml:"oracle,omitempty"`
	Tools   ToolsConfig   `yaml:"tools,omitempty"`
	Agent   AgentConfig   `yaml:"agent,omitempty"`
	Session SessionConfig `yaml:"session,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host           string   `yaml:"host,omitempty" envconfig:"HOST"`
	Port           int      `yaml:"port,omitempty" envconfig:"PORT"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty" envconfig:"ALLOWED_ORIGINS"`
}

// OracleConfig configures the reasoning service client.
type OracleConfig struct {
	APIKey  string `yaml:"apiKey,omitempty" envconfig:"OPENAI_API_KEY"`
	Model   string `yaml:"model,omitempty" envconfig:"LLM_MODEL"`
	BaseURL string `yaml:"baseUrl,omitempty" envconfig:"OPENAI_BASE_URL"`
}

// ToolsConfig configures the MCP tool server connections.
type ToolsConfig struct {
	BookingURL string `yaml:"bookingUrl,omitempty" envconfig:"BOOKING_AGENT_URL"`
	PaymentURL string `yaml:"paymentUrl,omitempty" envconfig:"PAYMENT_AGENT_URL"`

	// ConnectRetries and ConnectDelaySeconds bound the startup handshake
	// per server. The delay is expressed in (fractional) seconds to stay
	// compatible with MCP_CONNECT_DELAY=2.0 style values.
	ConnectRetries      int     `yaml:"connectRetries,omitempty" envconfig:"MCP_CONNECT_RETRIES"`
	ConnectDelaySeconds float64 `yaml:"connectDelaySeconds,omitempty" envconfig:"MCP_CONNECT_DELAY"`

	// InvokeTimeoutSeconds bounds a single tool invocation.
	InvokeTimeoutSeconds float64 `yaml:"invokeTimeoutSeconds,omitempty" envconfig:"MCP_INVOKE_TIMEOUT"`

	// StartupDelaySeconds optionally postpones the first connection attempt
	// (compose environments where tool servers start in parallel).
	StartupDelaySeconds float64 `yaml:"startupDelaySeconds,omitempty" envconfig:"STARTUP_DELAY"`
}

// ConnectDelay returns the inter-attempt delay as a duration.
func (t ToolsConfig) ConnectDelay() time.Duration {
	return time.Duration(t.ConnectDelaySeconds * float64(time.Second))
}

// InvokeTimeout returns the per-invocation timeout as a duration.
func (t ToolsConfig) InvokeTimeout() time.Duration {
	return time.Duration(t.InvokeTimeoutSeconds * float64(time.Second))
}

// StartupDelay returns the initial connection hold-off as a duration.
func (t ToolsConfig) StartupDelay() time.Duration {
	return time.Duration(t.StartupDelaySeconds * float64(time.Second))
}

// AgentConfig controls the orchestration loop.
type AgentConfig struct {
	MaxIterations int `yaml:"maxIterations,omitempty" envconfig:"MAX_ITERATIONS"`

	// StreamChunkBytes and StreamDelayMs shape outgoing answer chunking.
	StreamChunkBytes int `yaml:"streamChunkBytes,omitempty" envconfig:"STREAM_CHUNK_BYTES"`
	StreamDelayMs    int `yaml:"streamDelayMs,omitempty" envconfig:"STREAM_DELAY_MS"`
}

// SessionConfig defines session storage and lifecycle.
type SessionConfig struct {
	Store       string `yaml:"store,omitempty" envconfig:"SESSION_STORE"` // "memory" | "sqlite"
	Path        string `yaml:"path,omitempty" envconfig:"SESSION_DB_PATH"`
	IdleMinutes int    `yaml:"idleMinutes,omitempty" envconfig:"SESSION_IDLE_MINUTES"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty" envconfig:"LOG_LEVEL"` // "silent".."trace"
	Style string `yaml:"style,omitempty" envconfig:"LOG_STYLE"` // "pretty" | "json"
}
