package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// ParseLevel maps a level name to a slog.Level.
// logic: unknown or empty names fall back to WARN, the interactive default.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Setup initializes the global logger. Output goes to stderr so that stdout
// stays reserved for diagnostic reports.
func Setup(level string) {
	once.Do(func() {
		install(os.Stderr, level)
	})
}

// SetupWriter is Setup with an explicit destination. It replaces any logger
// installed earlier.
func SetupWriter(w io.Writer, level string) {
	once.Do(func() {})
	install(w, level)
}

func install(w io.Writer, level string) {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}
	handler := slog.NewJSONHandler(w, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	if logger == nil {
		Setup("WARN")
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithCommand returns a logger with the command field set.
func WithCommand(name string) *slog.Logger {
	return Get().With(slog.String("command", name))
}

// WithProbe returns a logger with the probe field set.
func WithProbe(name string) *slog.Logger {
	return Get().With(slog.String("probe", name))
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}
