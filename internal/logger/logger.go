package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// Init configures the default logger at level. Production gets JSON output,
// every other environment gets text.
func Init(level string, env ...string) {
	defaultLogger = New(os.Stdout, level, len(env) > 0 && env[0] == "production")
}

// New builds a logger writing to w.
func New(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR to slog levels; anything else is INFO.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(level)))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func init() {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// Logger returns the default logger instance.
func Logger() *slog.Logger {
	return defaultLogger
}

// SetLogger allows replacing the default logger (for tests or customization).
func SetLogger(l *slog.Logger) {
	defaultLogger = l
}
