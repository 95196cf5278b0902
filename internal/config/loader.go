package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/halyard/internal/cli"
	"github.com/mattjoyce/halyard/internal/dumper"
	"github.com/mattjoyce/halyard/internal/probe"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// envOverrides are the HALYARD_* variables that override file values.
type envOverrides struct {
	Probe       string `env:"HALYARD_PROBE"`
	Chip        string `env:"HALYARD_CHIP"`
	Archive     string `env:"HALYARD_ARCHIVE"`
	Dump        string `env:"HALYARD_DUMP"`
	LogLevel    string `env:"HALYARD_LOG_LEVEL"`
	HistoryPath string `env:"HALYARD_HISTORY_PATH"`
}

// Load discovers, reads and validates the configuration. explicit is the
// --config value and may be empty. Environment overrides are applied on
// top of the file, and built-in defaults fill whatever neither sets.
func Load(explicit string) (*Config, error) {
	path, err := Discover(explicit)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if path != "" {
		if cfg, err = loadConfigFile(path); err != nil {
			return nil, err
		}
		cfg.SourceFile = path
	}
	cfg = applyConfigDefaults(cfg)

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	expandPaths(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in %s: %w", path, err)
	}
	return &cfg, nil
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Defaults.LogLevel == "" {
		cfg.Defaults.LogLevel = defaults.Defaults.LogLevel
	}
	if cfg.Transport.DialTimeout == 0 {
		cfg.Transport.DialTimeout = defaults.Transport.DialTimeout
	}
	if cfg.Transport.MaxRead == 0 {
		cfg.Transport.MaxRead = defaults.Transport.MaxRead
	}
	if cfg.Transport.LockDir == "" {
		cfg.Transport.LockDir = defaults.Transport.LockDir
	}
	if cfg.History.Path == "" {
		cfg.History.Path = defaults.History.Path
	}
	if cfg.History.Limit == 0 {
		cfg.History.Limit = defaults.History.Limit
	}
	for i := range cfg.Probes {
		if cfg.Probes[i].Driver == "" {
			cfg.Probes[i].Driver = probe.DriverGDB
		}
	}
	return cfg
}

func applyEnv(cfg *Config) error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Defaults.Probe, ov.Probe)
	set(&cfg.Defaults.Chip, ov.Chip)
	set(&cfg.Defaults.Archive, ov.Archive)
	set(&cfg.Defaults.Dump, ov.Dump)
	set(&cfg.Defaults.LogLevel, ov.LogLevel)
	set(&cfg.History.Path, ov.HistoryPath)
	return nil
}

func expandPaths(cfg *Config) {
	cfg.Defaults.Archive = expandHome(cfg.Defaults.Archive)
	cfg.Defaults.Dump = expandHome(cfg.Defaults.Dump)
	cfg.History.Path = expandHome(cfg.History.Path)
	cfg.Transport.LockDir = expandHome(cfg.Transport.LockDir)
	if cfg.SourceFile == "" {
		return
	}
	// Relative paths in a file are relative to that file.
	base := filepath.Dir(cfg.SourceFile)
	for _, p := range []*string{&cfg.Defaults.Archive, &cfg.Defaults.Dump} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// Globals returns the configured starting values for the global flags.
func (c *Config) Globals() cli.Globals {
	return cli.Globals{
		Probe:    c.Defaults.Probe,
		Chip:     c.Defaults.Chip,
		Archive:  c.Defaults.Archive,
		Dump:     c.Defaults.Dump,
		Config:   c.SourceFile,
		LogLevel: c.Defaults.LogLevel,
	}
}

// Renderer returns the hex renderer with the configured overrides applied.
func (c *Config) Renderer() dumper.Dumper {
	d := *dumper.New()
	if c.Dumper.Width != 0 {
		d.Width = c.Dumper.Width
	}
	if c.Dumper.AddrSize != 0 {
		d.AddrSize = c.Dumper.AddrSize
	}
	d.Indent = c.Dumper.Indent
	d.Hanging = c.Dumper.Hanging
	if c.Dumper.Header != nil {
		d.Header = *c.Dumper.Header
	}
	if c.Dumper.ASCII != nil {
		d.ASCII = *c.Dumper.ASCII
	}
	return d
}
