package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// historySize is how many formatted lines the debug history keeps.
const historySize = 500

// History receives a plain-text copy of every log line written through Setup's logger.
// The workflow debug view reads from it.
var History = NewRing(historySize)

// Setup initializes the global zerolog logger based on environment configuration.
//   - level: log level string (trace, debug, info, warn, error, fatal, panic)
//   - format: "json" for production, "pretty" for human-readable dev output
//
// Every line is also teed, uncolored, into History.
func Setup(level, format string) zerolog.Logger {
	var writer io.Writer

	if format == "pretty" {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	} else {
		writer = os.Stdout
	}

	historyWriter := zerolog.ConsoleWriter{
		Out:        History,
		NoColor:    true,
		TimeFormat: time.RFC3339,
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)

	log := zerolog.New(zerolog.MultiLevelWriter(writer, historyWriter)).
		With().
		Timestamp().
		Caller().
		Logger()

	return log
}

// Recent returns up to n of the most recent log lines, oldest first.
func Recent(n int) []string {
	return History.Last(n)
}
