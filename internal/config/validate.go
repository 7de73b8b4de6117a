package config

import "fmt"

// Issue describes a single validation problem with its config path.
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

var validBinds = map[string]bool{"loopback": true, "lan": true, "custom": true}

// Validate checks a loaded Config and returns all problems found.
// An empty slice means the config is usable.
func Validate(cfg *Config) []Issue {
	var issues []Issue

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		issues = append(issues, Issue{
			Path:    "server.port",
			Message: fmt.Sprintf("invalid port %d", cfg.Server.Port),
		})
	}
	if !validBinds[cfg.Server.Bind] {
		issues = append(issues, Issue{
			Path:    "server.bind",
			Message: fmt.Sprintf("unknown bind mode %q (loopback, lan, custom)", cfg.Server.Bind),
		})
	}
	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		issues = append(issues, Issue{
			Path:    "server.customBindHost",
			Message: "required when server.bind is custom",
		})
	}

	if cfg.Corti.Environment == "" {
		issues = append(issues, Issue{Path: "corti.environment", Message: "required"})
	}
	if cfg.Corti.Tenant == "" {
		issues = append(issues, Issue{Path: "corti.tenant", Message: "required (or set CORTI_TENANT_NAME)"})
	}
	if cfg.Corti.ClientID == "" {
		issues = append(issues, Issue{Path: "corti.clientId", Message: "required (or set CORTI_CLIENT_ID)"})
	}
	if cfg.Corti.ClientSecret == "" {
		issues = append(issues, Issue{Path: "corti.clientSecret", Message: "required (or set CORTI_CLIENT_SECRET)"})
	}

	if cfg.Relay.MaxQueuedFrames < 1 {
		issues = append(issues, Issue{
			Path:    "relay.maxQueuedFrames",
			Message: "must be at least 1",
		})
	}
	if cfg.Relay.ConfigTimeout < 0 {
		issues = append(issues, Issue{Path: "relay.configTimeout", Message: "must not be negative"})
	}
	if cfg.Relay.EndTimeout < 0 {
		issues = append(issues, Issue{Path: "relay.endTimeout", Message: "must not be negative"})
	}

	return issues
}
