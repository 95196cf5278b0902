package config

import (
	"strings"

	"github.com/mattjoyce/halyard/internal/fault"
	"github.com/mattjoyce/halyard/internal/probe"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	if !validLogLevels[strings.ToLower(cfg.Defaults.LogLevel)] {
		return fault.Configf("config", "defaults.log_level must be one of: debug, info, warn, error (got %q)", cfg.Defaults.LogLevel)
	}

	if err := validateProbes(cfg.Probes); err != nil {
		return err
	}

	if cfg.Transport.DialTimeout < 0 {
		return fault.Configf("config", "transport.dial_timeout must not be negative")
	}
	if cfg.Transport.MaxRead < 0 {
		return fault.Configf("config", "transport.max_read must not be negative")
	}

	if unresolved := envVarPattern.FindStringSubmatch(cfg.History.Path); len(unresolved) > 1 {
		return fault.Configf("config", "history.path: environment variable ${%s} is not set", unresolved[1])
	}
	if cfg.History.Limit < 0 {
		return fault.Configf("config", "history.limit must not be negative")
	}

	d := cfg.Renderer()
	return d.Validate()
}

func validateProbes(specs []probe.Spec) error {
	seen := make(map[string]bool, len(specs))
	for i, p := range specs {
		switch {
		case p.Name == "":
			return fault.Configf("config", "probes[%d]: name is required", i)
		case p.Name == probe.Auto:
			return fault.Configf("config", "probes[%d]: %q is reserved", i, probe.Auto)
		case strings.Contains(p.Name, ":"):
			return fault.Configf("config", "probes[%d]: name %q must not contain ':'", i, p.Name)
		case seen[p.Name]:
			return fault.Configf("config", "probes[%d]: duplicate probe name %q", i, p.Name)
		case p.Driver != probe.DriverGDB:
			return fault.Configf("config", "probe %s: unsupported driver %q", p.Name, p.Driver)
		case p.Address == "":
			return fault.Configf("config", "probe %s: address is required", p.Name)
		}
		if m := envVarPattern.FindStringSubmatch(p.Address); len(m) > 1 {
			return fault.Configf("config", "probe %s: environment variable ${%s} is not set", p.Name, m[1])
		}
		seen[p.Name] = true
	}
	return nil
}
