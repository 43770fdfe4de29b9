package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"groupcast/internal/constants"
	"groupcast/internal/models"
	"groupcast/internal/security"
)

var (
	ErrMissingWhatsAppURL = models.ConfigError{Message: "missing WhatsApp API URL"}
	ErrMissingStoragePath = models.ConfigError{Message: "missing storage path"}
)

// LoadConfig reads, validates and normalizes the configuration file.
// Environment variables override file values for deployment secrets.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.WhatsApp.APIBaseURL == "" {
		return ErrMissingWhatsAppURL
	}
	if c.Storage.Path == "" {
		return ErrMissingStoragePath
	}

	switch c.Storage.Backend {
	case "":
		c.Storage.Backend = "file"
	case "file", "sqlite":
	default:
		return models.ConfigError{Message: fmt.Sprintf("unknown storage backend: %s", c.Storage.Backend)}
	}

	if c.WhatsApp.SessionName == "" {
		c.WhatsApp.SessionName = constants.DefaultWhatsAppSession
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeout
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultPersistRetryAttempts
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "groupcast"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 0.1
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("WHATSAPP_API_URL"); url != "" {
		c.WhatsApp.APIBaseURL = url
	}
	// The gateway API key is a secret and only ever comes from the environment
	if key := os.Getenv("WHATSAPP_API_KEY"); key != "" {
		c.WhatsApp.APIKey = key
	}
	if session := os.Getenv("GROUPCAST_SESSION_NAME"); session != "" {
		c.WhatsApp.SessionName = session
	}
	if path := os.Getenv("GROUPCAST_STORAGE_PATH"); path != "" {
		c.Storage.Path = path
	}
	if backend := os.Getenv("GROUPCAST_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if level := os.Getenv("GROUPCAST_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if port := os.Getenv("GROUPCAST_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
}
