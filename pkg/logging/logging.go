// Package logging builds the zerolog logger shared by all components.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/ragcache/pkg/config"
)

// New returns a logger writing to w in the configured format and level.
// An empty level means info; config validation rejects unknown ones.
func New(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	out := w
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
