// Package fault defines the error taxonomy shared by the registry, dispatcher,
// attachment state machine and renderer. Callers classify failures with
// errors.As; every wrapping type exposes its cause through Unwrap.
package fault

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a static misconfiguration: duplicate command
// names in the descriptor set, an invalid renderer geometry, a bad config file.
type ConfigurationError struct {
	Component string
	Detail    string
}

func (e *ConfigurationError) Error() string {
	if e.Component == "" {
		return "configuration error: " + e.Detail
	}
	return fmt.Sprintf("%s: configuration error: %s", e.Component, e.Detail)
}

// UnknownCommandError is returned when a command name has no registry entry.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("command %s not found", e.Name)
}

// ArchiveLoadError wraps a failure to load a firmware archive.
type ArchiveLoadError struct {
	Path string
	Err  error
}

func (e *ArchiveLoadError) Error() string {
	return fmt.Sprintf("failed to load archive %q: %v", e.Path, e.Err)
}

func (e *ArchiveLoadError) Unwrap() error { return e.Err }

// DumpLoadError wraps a failure to load a dump.
type DumpLoadError struct {
	Path string
	Err  error
}

func (e *DumpLoadError) Error() string {
	return fmt.Sprintf("failed to load dump %q: %v", e.Path, e.Err)
}

func (e *DumpLoadError) Unwrap() error { return e.Err }

// MissingArchiveError is returned when a command requires an archive and
// neither an archive nor a dump was loaded.
type MissingArchiveError struct {
	Command string
}

func (e *MissingArchiveError) Error() string {
	if e.Command == "" {
		return "must provide an archive or dump"
	}
	return fmt.Sprintf("%s: must provide an archive or dump", e.Command)
}

// AttachmentError reports that no acceptable target connection could be made.
type AttachmentError struct {
	Reason string
	Err    error
}

func (e *AttachmentError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *AttachmentError) Unwrap() error { return e.Err }

// ValidationMismatchError reports that the attached target does not run the
// image recorded in the archive.
type ValidationMismatchError struct {
	Expected string
	Actual   string
}

func (e *ValidationMismatchError) Error() string {
	return fmt.Sprintf("archive/target mismatch: archive image id %s, target image id %s", e.Expected, e.Actual)
}

// NotBootedError reports that the target has not finished booting.
type NotBootedError struct {
	Detail string
}

func (e *NotBootedError) Error() string {
	if e.Detail == "" {
		return "target has not booted"
	}
	return "target has not booted: " + e.Detail
}

// CommandExecutionError carries whatever a command body reported.
type CommandExecutionError struct {
	Command string
	Err     error
}

func (e *CommandExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandExecutionError) Unwrap() error { return e.Err }

// Configf builds a ConfigurationError for component.
func Configf(component, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Component: component, Detail: fmt.Sprintf(format, args...)}
}

// Attachf builds an AttachmentError without a cause.
func Attachf(format string, args ...any) *AttachmentError {
	return &AttachmentError{Reason: fmt.Sprintf(format, args...)}
}

// Classified reports whether err is, or wraps, one of the taxonomy errors.
func Classified(err error) bool {
	var (
		cfg      *ConfigurationError
		unknown  *UnknownCommandError
		archive  *ArchiveLoadError
		dump     *DumpLoadError
		missing  *MissingArchiveError
		attach   *AttachmentError
		mismatch *ValidationMismatchError
		booted   *NotBootedError
		exec     *CommandExecutionError
	)
	return errors.As(err, &cfg) || errors.As(err, &unknown) || errors.As(err, &archive) ||
		errors.As(err, &dump) || errors.As(err, &missing) || errors.As(err, &attach) ||
		errors.As(err, &mismatch) || errors.As(err, &booted) || errors.As(err, &exec)
}
