package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by the logger
type ContextKey string

const (
	// LoggerKey is the context key for the logger instance
	LoggerKey ContextKey = "logger"
)

// Config selects the output format and level of a logger.
type Config struct {
	// Environment "production" switches to JSON output.
	Environment string
	// Level is a zerolog level name such as "debug" or "warn". Empty means
	// debug in development and info in production.
	Level string
	// Output defaults to stdout. Command-line tools that print results on
	// stdout log to stderr instead.
	Output io.Writer
}

// New creates a console logger for local development.
func New() zerolog.Logger {
	return newConsole(os.Stdout)
}

func newConsole(w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Caller().Logger()
}

// NewFromConfig creates a logger for cfg: JSON in production, the console
// format everywhere else.
func NewFromConfig(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var log zerolog.Logger
	if isProduction(cfg.Environment) {
		log = NewWithWriter(out)
	} else {
		log = newConsole(out)
	}
	return log.Level(parseLevel(cfg))
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// WithContext adds the logger to the context
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from the context or returns a default logger
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return New()
}

// WithFields adds structured fields to a logger
func WithFields(logger zerolog.Logger, fields map[string]interface{}) zerolog.Logger {
	ctx := logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return ctx.Logger()
}

func isProduction(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return true
	}
	return false
}

func parseLevel(cfg Config) zerolog.Level {
	if cfg.Level != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
			return lvl
		}
	}
	if isProduction(cfg.Environment) {
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}
