// Package logger provides the zerolog backed implementation of the core
// logger interface.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	rootMu sync.RWMutex
	root   = defaultRoot()
)

// defaultRoot follows APP_ENV (dev selects the console writer) and LOG_LEVEL.
func defaultRoot() zerolog.Logger {
	format := "json"
	if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		format = "console"
	}
	z, err := build(os.Stdout, format, os.Getenv("LOG_LEVEL"))
	if err != nil {
		z, _ = build(os.Stdout, format, "")
	}
	return z
}

func build(w io.Writer, format, level string) (zerolog.Logger, error) {
	var z zerolog.Logger
	switch strings.ToLower(format) {
	case "console":
		z = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	case "", "json":
		z = zerolog.New(w)
	default:
		return z, fmt.Errorf("unknown log format %q", format)
	}
	z = z.With().Timestamp().Logger()
	if level == "" {
		return z.Level(zerolog.InfoLevel), nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return z, err
	}
	return z.Level(lvl), nil
}

// Setup replaces the root logger. Loggers created earlier keep their output.
func Setup(w io.Writer, format, level string) error {
	z, err := build(w, format, level)
	if err != nil {
		return err
	}
	rootMu.Lock()
	root = z
	rootMu.Unlock()
	return nil
}

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

func NewZerologLogger(component string) Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return &ZerologLogger{log: root.With().Str("component", component).Logger()}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}

func (l *ZerologLogger) With(key string, value any) Logger {
	return &ZerologLogger{log: l.log.With().Interface(key, value).Logger()}
}
