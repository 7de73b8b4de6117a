package config

import (
	"os"
	"regexp"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} references in string values.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} references with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes ${ENV_VAR} references in credential fields
// so secrets never need to live in the config file itself.
func expandSensitiveFields(cfg *Config) {
	cfg.Corti.ClientID = expandEnvVars(cfg.Corti.ClientID)
	cfg.Corti.ClientSecret = expandEnvVars(cfg.Corti.ClientSecret)
}

// Load reads the config file at path and returns a merged Config.
// A missing file yields defaults plus environment overrides, so the gateway
// can run from CORTI_* variables alone.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := applyEnvOverrides(&cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &Error{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyDefaults fills zero-value fields after unmarshalling.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = d.Server.Bind
	}
	if cfg.Corti.Environment == "" {
		cfg.Corti.Environment = d.Corti.Environment
	}
	if cfg.Relay.MaxQueuedFrames == 0 {
		cfg.Relay.MaxQueuedFrames = d.Relay.MaxQueuedFrames
	}
	if cfg.Relay.ConfigTimeout == 0 {
		cfg.Relay.ConfigTimeout = d.Relay.ConfigTimeout
	}
	if cfg.Relay.EndTimeout == 0 {
		cfg.Relay.EndTimeout = d.Relay.EndTimeout
	}
	if cfg.Relay.PrimaryLanguage == "" {
		cfg.Relay.PrimaryLanguage = d.Relay.PrimaryLanguage
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Style == "" {
		cfg.Logging.Style = d.Logging.Style
	}
}

// applyEnvOverrides reads CORTI_* credential variables into the Corti block.
// Environment always wins over file values.
func applyEnvOverrides(cfg *Config) error {
	if err := env.Parse(&cfg.Corti); err != nil {
		return &Error{Message: "parsing environment: " + err.Error()}
	}
	return nil
}
