// Package logx configures the process-wide zerolog logger.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Setup installs the global logger and returns it. Unknown levels mean info.
func Setup(service, level string) zerolog.Logger {
	return New(os.Stdout, service, level)
}

func New(w io.Writer, service, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	l := zerolog.New(w).With().Timestamp().Str("service", service).Logger()
	zlog.Logger = l
	zerolog.DefaultContextLogger = &l
	return l
}
