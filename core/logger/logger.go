// Package logger defines the logging interface the core packages depend on.
package logger

// Logger is a leveled logger bound to one component.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	// With returns a child logger that adds key to every entry.
	With(key string, value any) Logger
}
