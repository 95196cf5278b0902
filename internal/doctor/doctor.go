// Package doctor checks a halyard configuration against the machine it runs
// on: referenced files, probe selection and the state directories.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mattjoyce/halyard/internal/config"
	"github.com/mattjoyce/halyard/internal/probe"
	"github.com/mattjoyce/halyard/internal/storage"
)

// Result holds the outcome of a check run.
type Result struct {
	Valid    bool    `json:"valid"`
	Source   string  `json:"source,omitempty"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor checks a loaded configuration.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor for cfg.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true, Source: d.cfg.SourceFile}

	d.validateDefaultFiles(r)
	d.validateProbeSelection(r)
	d.validateHistory(r)
	d.warnMissingEnvVars(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateDefaultFiles checks that default archive and dump paths exist.
func (d *Doctor) validateDefaultFiles(r *Result) {
	for field, path := range map[string]string{
		"defaults.archive": d.cfg.Defaults.Archive,
		"defaults.dump":    d.cfg.Defaults.Dump,
	} {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		switch {
		case err != nil:
			d.addError(r, "files", field, fmt.Sprintf("%s does not exist", path))
		case info.IsDir():
			d.addError(r, "files", field, fmt.Sprintf("%s is a directory", path))
		}
	}
	if d.cfg.Defaults.Archive != "" && d.cfg.Defaults.Dump != "" {
		d.addWarning(r, "files", "defaults",
			"both archive and dump are set; the archive wins and the dump only supplies memory")
	}
}

// validateProbeSelection checks that the default probe selector resolves.
func (d *Doctor) validateProbeSelection(r *Result) {
	selector := strings.TrimSpace(d.cfg.Defaults.Probe)
	catalog := probe.NewCatalog(d.cfg.Probes, d.cfg.Transport.DialTimeout, d.cfg.Transport.MaxRead)

	if selector == "" || selector == probe.Auto {
		switch len(d.cfg.Probes) {
		case 0:
			d.addWarning(r, "probes", "probes",
				"no probes configured; live commands need --probe gdb:<host:port>")
		case 1:
		default:
			d.addWarning(r, "probes", "defaults.probe",
				fmt.Sprintf("%d probes configured and none selected; automatic selection will fail", len(d.cfg.Probes)))
		}
		return
	}

	if _, err := catalog.Select(selector); err != nil {
		d.addError(r, "probes", "defaults.probe", err.Error())
	}
}

// validateHistory checks that history and lock files can live where configured.
func (d *Doctor) validateHistory(r *Result) {
	if d.cfg.History.On() {
		if err := storage.CheckLocalFilesystem(d.cfg.History.Path); err != nil {
			d.addError(r, "history", "history.path", err.Error())
		}
	}
	if d.cfg.Transport.LockDir != "" {
		if err := storage.CheckLocalFilesystem(d.cfg.Transport.LockDir); err != nil {
			d.addWarning(r, "probes", "transport.lock_dir",
				"probe locks are unreliable on network filesystems: "+err.Error())
		}
	}
}

// warnMissingEnvVars warns about ${VAR} references left after loading.
func (d *Doctor) warnMissingEnvVars(r *Result) {
	envVarRe := regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

	fields := map[string]string{
		"defaults.probe":   d.cfg.Defaults.Probe,
		"defaults.chip":    d.cfg.Defaults.Chip,
		"defaults.archive": d.cfg.Defaults.Archive,
		"defaults.dump":    d.cfg.Defaults.Dump,
	}
	for field, v := range fields {
		for _, m := range envVarRe.FindAllStringSubmatch(v, -1) {
			d.addWarning(r, "env_vars", field, fmt.Sprintf("environment variable ${%s} not set", m[1]))
		}
	}
}

// FormatHuman returns a human-readable report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Source != "" {
		fmt.Fprintf(&b, "Configuration: %s\n", r.Source)
	} else {
		b.WriteString("Configuration: built-in defaults\n")
	}

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("No problems found.\n")
		return b.String()
	}
	if r.Valid {
		fmt.Fprintf(&b, "No errors (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "%d error(s), %d warning(s)\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
	}
	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
