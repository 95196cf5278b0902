package config

import (
	"path/filepath"
	"time"

	"github.com/mattjoyce/halyard/internal/probe"
)

// Config represents the complete halyard configuration.
type Config struct {
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Probes    []probe.Spec    `yaml:"probes,omitempty"`
	Transport TransportConfig `yaml:"transport"`
	Dumper    DumperConfig    `yaml:"dumper"`
	History   HistoryConfig   `yaml:"history"`

	// SourceFile is the file the configuration was read from, empty when
	// only built-in defaults apply.
	SourceFile string `yaml:"-"`
}

// DefaultsConfig holds the values the global flags start from.
type DefaultsConfig struct {
	Probe    string `yaml:"probe,omitempty"`
	Chip     string `yaml:"chip,omitempty"`
	Archive  string `yaml:"archive,omitempty"`
	Dump     string `yaml:"dump,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
}

// TransportConfig defines probe connection settings.
type TransportConfig struct {
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// MaxRead caps the bytes requested in one memory read packet.
	MaxRead int `yaml:"max_read"`
	// LockDir holds one lock file per probe in use.
	LockDir string `yaml:"lock_dir"`
}

// DumperConfig overrides the hex renderer geometry. Zero values keep the
// renderer defaults.
type DumperConfig struct {
	Width    int   `yaml:"width,omitempty"`
	AddrSize int   `yaml:"addr_size,omitempty"`
	Indent   int   `yaml:"indent,omitempty"`
	Hanging  bool  `yaml:"hanging,omitempty"`
	Header   *bool `yaml:"header,omitempty"`
	ASCII    *bool `yaml:"ascii,omitempty"`
}

// HistoryConfig defines shell history persistence.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path"`
	// Limit is how many recent lines the line editor preloads and how many
	// rows survive pruning.
	Limit int `yaml:"limit"`
}

// On reports whether history is enabled; it is unless switched off.
func (h HistoryConfig) On() bool {
	return h.Enabled == nil || *h.Enabled
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			LogLevel: "warn",
		},
		Transport: TransportConfig{
			DialTimeout: 5 * time.Second,
			MaxRead:     1024,
			LockDir:     filepath.Join(stateDir(), "locks"),
		},
		History: HistoryConfig{
			Path:  filepath.Join(stateDir(), "history.db"),
			Limit: 1000,
		},
	}
}
