// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"

	"github.com/pinggolf/inventory-chat-core/internal/config"
	"github.com/rs/zerolog"
)

// New returns a configured zerolog.Logger. JSON output in production,
// console-pretty output otherwise.
func New(cfg *config.Config) zerolog.Logger {
	var writer io.Writer = os.Stderr
	if cfg.LogFormat != "json" {
		writer = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(writer).With().Timestamp().Str("env", cfg.AppEnv).Logger()
}
