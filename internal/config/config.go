// Package config loads and validates the scribe configuration.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the scribe gateway.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Corti   CortiConfig   `yaml:"corti,omitempty"`
	Relay   RelayConfig   `yaml:"relay,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Store   StoreConfig   `yaml:"store,omitempty"`
}

// ServerConfig controls the browser-facing HTTP/WebSocket server.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// CortiConfig identifies the Corti environment and tenant credentials.
// ClientID and ClientSecret may be given as ${ENV_VAR} references, and are
// additionally overridable via the CORTI_CLIENT_ID / CORTI_CLIENT_SECRET /
// CORTI_ENVIRONMENT / CORTI_TENANT_NAME environment variables.
type CortiConfig struct {
	Environment  string `yaml:"environment,omitempty" env:"CORTI_ENVIRONMENT"`
	Tenant       string `yaml:"tenant,omitempty" env:"CORTI_TENANT_NAME"`
	ClientID     string `yaml:"clientId,omitempty" env:"CORTI_CLIENT_ID"`
	ClientSecret string `yaml:"clientSecret,omitempty" env:"CORTI_CLIENT_SECRET"`
}

// RelayConfig tunes the per-session streaming relay.
type RelayConfig struct {
	// MaxQueuedFrames bounds the audio queue held while waiting for the
	// provider to accept the stream configuration. Oldest frames are dropped
	// past the bound. Zero or unset selects the default; the gateway always
	// runs with a positive bound.
	MaxQueuedFrames int `yaml:"maxQueuedFrames,omitempty"`
	// ConfigTimeout fails the session if the provider never acknowledges the
	// stream configuration. Zero disables the deadline.
	ConfigTimeout time.Duration `yaml:"configTimeout,omitempty"`
	// EndTimeout force-closes a session stuck waiting for the provider's
	// ENDED confirmation. Zero disables the deadline.
	EndTimeout time.Duration `yaml:"endTimeout,omitempty"`
	// PrimaryLanguage is the transcription locale requested from the provider.
	PrimaryLanguage string `yaml:"primaryLanguage,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent".."trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}

// StoreConfig controls the local encounter archive. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Error represents a configuration error.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8080,
			Bind: "loopback",
		},
		Corti: CortiConfig{
			Environment: "eu",
		},
		Relay: RelayConfig{
			MaxQueuedFrames: 512,
			ConfigTimeout:   30 * time.Second,
			EndTimeout:      15 * time.Second,
			PrimaryLanguage: "en",
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}
