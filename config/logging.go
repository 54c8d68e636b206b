package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger. It discards everything until InitLogging
// is called, so packages can log unconditionally.
var Log = zerolog.Nop()

var Debug = false

func CheckDebug() bool {
	debug := os.Getenv("AGENTRELAY_DEBUG")
	return debug == "true" || debug == "1"
}

// InitLogging configures Log. Output goes to stderr in console format; with
// AGENTRELAY_DEBUG set the level drops to debug and records are also
// appended as JSON to <dataDir>/debug.log.
func InitLogging(dataDir string) {
	Debug = CheckDebug()

	level := zerolog.InfoLevel
	if Debug {
		level = zerolog.DebugLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}

	if Debug && dataDir != "" {
		logPath := filepath.Join(dataDir, "debug.log")
		// 0600 - may contain prompts and tool arguments
		f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		} else {
			out = zerolog.MultiLevelWriter(out, f)
		}
	}

	Log = zerolog.New(out).Level(level).With().Timestamp().Logger()
	Log.Debug().Str("AGENTRELAY_DEBUG", os.Getenv("AGENTRELAY_DEBUG")).Msg("debug logging started")
}

// Logger returns a child of Log tagged with the component name. Call it at
// the point of logging rather than caching the result, so loggers created
// before InitLogging are not left discarding output.
func Logger(component string) *zerolog.Logger {
	l := Log.With().Str("component", component).Logger()
	return &l
}

// SetLogWriter replaces Log with a JSON logger writing to w. Intended for
// tests and for the terminal client, which must keep stderr clean.
func SetLogWriter(w io.Writer, level zerolog.Level) {
	Log = zerolog.New(w).Level(level).With().Timestamp().Logger()
}
