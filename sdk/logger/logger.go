// Package logger wraps log/slog with env-driven configuration.
//
// The lexprep binary owns the terminal, so the default output is stderr
// or a log file rather than stdout. Services and stores receive a
// *Logger and log structured key/value pairs.
package logger

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jrazmi/lexprep/sdk/environment"
)

// Logger is a thin wrapper around the standard slog.Logger.
type Logger struct {
	*slog.Logger
}

// Options is the exportable logger configuration.
type Options struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" default:"INFO"`
	Output     string `yaml:"output" env:"LOG_OUTPUT" default:"STDERR"`
	Format     string `yaml:"format" env:"LOG_FORMAT" default:"json"`
	TimeFormat string `yaml:"time_format" env:"LOG_TIME_FORMAT" default:"RFC3339"`
}

// NewFromEnv builds a logger from LOG_* environment variables under the
// given prefix.
func NewFromEnv(prefix string) (*Logger, error) {
	var opts Options
	if err := environment.ParseEnvTags(prefix, &opts); err != nil {
		return nil, fmt.Errorf("parsing logger config: %w", err)
	}
	return New(opts), nil
}

// NewDefault returns a logger with the default options, writing to stderr.
func NewDefault() *Logger {
	return New(Options{Level: "INFO", Output: "STDERR", Format: "json", TimeFormat: "RFC3339"})
}

// NewDiscard returns a logger that drops everything. Used in tests.
func NewDiscard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// NewStdLogger adapts a Logger to the standard library log.Logger.
func NewStdLogger(l *Logger, level slog.Level) *log.Logger {
	return slog.NewLogLogger(l.Logger.Handler(), level)
}

// New builds a logger from explicit options.
func New(opts Options) *Logger {
	handlerOpts := &slog.HandlerOptions{
		Level: parseLevel(opts.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				switch opts.TimeFormat {
				case "Unix":
					return slog.Int64(slog.TimeKey, a.Value.Time().Unix())
				case "UnixMilli":
					return slog.Int64(slog.TimeKey, a.Value.Time().UnixMilli())
				case "RFC3339Nano":
					return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339Nano))
				default:
					return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	output := parseOutput(opts.Output)

	var handler slog.Handler
	switch opts.Format {
	case "text":
		handler = slog.NewTextHandler(output, handlerOpts)
	default:
		handler = slog.NewJSONHandler(output, handlerOpts)
	}

	return &Logger{Logger: slog.New(handler)}
}

func parseOutput(o string) io.Writer {
	switch o {
	case "", "STDERR":
		return os.Stderr
	case "STDOUT":
		return os.Stdout
	case "DISCARD":
		return io.Discard
	default:
		// Anything else is treated as a file path. The TUI owns the
		// terminal, so file output is the usual choice.
		f, err := os.OpenFile(o, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return os.Stderr
		}
		return f
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
