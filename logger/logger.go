// Package logger builds the zerolog loggers used by the command line and the
// segmentation pipeline.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Format selects how log events are rendered.
type Format string

const (
	// FormatConsole renders human readable, colorized lines.
	FormatConsole Format = "console"
	// FormatJSON renders one JSON object per event.
	FormatJSON Format = "json"
)

// Config describes a logger.
type Config struct {
	// Level is a zerolog level name (trace, debug, info, warn, error).
	Level string `json:"level" yaml:"level"`
	// Format is FormatConsole or FormatJSON.
	Format Format `json:"format" yaml:"format"`
}

// DefaultConfig logs info and above to the console.
func DefaultConfig() Config {
	return Config{Level: "info", Format: FormatConsole}
}

// Validate checks the level and format.
func (c Config) Validate() error {
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.Format {
	case FormatConsole, FormatJSON:
		return nil
	default:
		return errors.Errorf("unknown log format %q", c.Format)
	}
}

func (c Config) level() (zerolog.Level, error) {
	if c.Level == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "invalid log level %q", c.Level)
	}
	return level, nil
}

// New builds a logger writing to w.
func New(cfg Config, w io.Writer) (zerolog.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return zerolog.Nop(), err
	}
	level, _ := cfg.level()

	if cfg.Format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// NewConsole builds a console logger on stderr at the given level.
func NewConsole(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
