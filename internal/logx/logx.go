// Package logx configures the global zerolog logger shared by every binary.
package logx

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger. An unknown level falls back to info.
func Setup(cfg config.LogConfig, service string) {
	setup(cfg, service, os.Stderr)
}

func setup(cfg config.LogConfig, service string, out io.Writer) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", service).Logger()
}
