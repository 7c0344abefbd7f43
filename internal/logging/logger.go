package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger. LOG_LEVEL selects debug, info, warn or
// error (default info). Lambdas log JSON lines; console is for the CLI.
func Init(console bool) {
	zerolog.SetGlobalLevel(levelFrom(os.Getenv("LOG_LEVEL")))
	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func levelFrom(v string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
