package models

import "time"

// Config holds the application configuration
type Config struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Storage  StorageConfig  `json:"storage"`
	Server   ServerConfig   `json:"server"`
	Retry    RetryConfig    `json:"retry"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"log_level"`
}

// WhatsAppConfig holds the send-transport gateway configuration
type WhatsAppConfig struct {
	APIBaseURL  string        `json:"api_base_url"`
	APIKey      string        `json:"-"`
	SessionName string        `json:"session_name"`
	Timeout     time.Duration `json:"timeout_ms"`
}

// StorageConfig selects and configures the queue-state persistence backend.
// Backend is "file" (JSON snapshot with atomic rename) or "sqlite".
type StorageConfig struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

// ServerConfig holds HTTP API server configuration
type ServerConfig struct {
	Port            int `json:"port"`
	ReadTimeoutSec  int `json:"readTimeoutSec"`
	WriteTimeoutSec int `json:"writeTimeoutSec"`
	IdleTimeoutSec  int `json:"idleTimeoutSec"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
