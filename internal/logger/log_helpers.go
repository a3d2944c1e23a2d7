// Package logger wraps log/slog for the connector: a process-wide default
// logger plus a request-scoped one carrying the request id.
package logger

// Info logs on the default logger. Request handlers should prefer
// FromContext so the request id is attached.
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs on the default logger.
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs on the default logger.
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}
