package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. Dev gets a human console writer,
// everything else plain JSON lines on stdout.
func Init(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	var out zerolog.Logger
	if env == "dev" {
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		out = zerolog.New(cw)
	} else {
		out = zerolog.New(os.Stdout)
	}
	log.Logger = out.With().Timestamp().Str("service", "gateway").Logger()
}
