package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the process logger.
type Config struct {
	Level      string `json:"level" yaml:"level" default:"info"`        // debug, info, warn, error
	Format     string `json:"format" yaml:"format" default:"console"`   // json or console
	Output     string `json:"output" yaml:"output" default:"stderr"`    // stdout, stderr, or file path
	TimeFormat string `json:"time_format,omitempty" yaml:"time_format,omitempty"`
}

// New builds a zerolog.Logger from cfg.
func New(cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
		}
		level = l
	}

	var out io.Writer
	switch cfg.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("could not open log file: %w", err)
		}
		out = f
	}

	tf := cfg.TimeFormat
	if tf == "" {
		tf = time.RFC3339
	}
	zerolog.TimeFieldFormat = tf

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: tf}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Pair returns a child logger tagged with a trading pair context.
func Pair(l zerolog.Logger, symbol, timeframe string) zerolog.Logger {
	return l.With().Str("symbol", symbol).Str("timeframe", timeframe).Logger()
}
