package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides leveled logging throughout the application.
// It keeps printf-style call sites and writes through zerolog.
type Logger struct {
	zl zerolog.Logger
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string // trace, debug, info, warn, error
	Format string // console or json
	Output io.Writer
}

// NewLogger creates a Logger writing human-readable lines to stdout at info level.
func NewLogger() *Logger {
	return NewLoggerWithConfig(LogConfig{Level: "info", Format: "console", Output: os.Stdout})
}

// NewLoggerWithConfig creates a Logger from cfg. Unknown levels fall back to info.
func NewLoggerWithConfig(cfg LogConfig) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.ToLower(cfg.Format) != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NewNopLogger returns a Logger that discards everything. Handy in tests.
func NewNopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying an extra string field.
func (l *Logger) With(key, value string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// Info logs at info level. A nil *Logger discards every message.
func (l *Logger) Info(format string, args ...any) {
	if l == nil {
		return
	}
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	if l == nil {
		return
	}
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	if l == nil {
		return
	}
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) {
	if l == nil {
		return
	}
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

// Duration logs how long a named stage took at debug level and returns the elapsed time.
func (l *Logger) Duration(stage string, start time.Time) time.Duration {
	d := time.Since(start)
	if l == nil {
		return d
	}
	l.zl.Debug().Str("stage", stage).Dur("elapsed", d).Msg("stage finished")
	return d
}
