// Package observability configures structured logging for the runtime.
//
// Logging is built on Go's slog package: configurable level, JSON output
// for production, human-readable text for development, and redaction of
// obvious secrets in attribute values.
package observability

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format specifies output format: "json" or "text".
	Format string `yaml:"format"`

	// Output is the writer for log output (defaults to os.Stdout).
	Output io.Writer `yaml:"-"`

	// AddSource includes file and line number in log records.
	AddSource bool `yaml:"add_source"`
}

var secretPattern = regexp.MustCompile(`(?i)(api[_-]?key|token|password|secret|bearer)\s*[=:]\s*\S+`)

// NewLogger builds a slog.Logger from the config.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// SetDefault installs the configured logger as the process default.
func SetDefault(cfg LogConfig) *slog.Logger {
	logger := NewLogger(cfg)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	v := a.Value.String()
	if secretPattern.MatchString(v) {
		a.Value = slog.StringValue(secretPattern.ReplaceAllString(v, "$1=[REDACTED]"))
	}
	return a
}
