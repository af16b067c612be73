package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// logLevelEnv overrides the default info level; any spelling zerolog
// understands works ("debug", "warn", ...).
const logLevelEnv = "TXLEDGER_LOG_LEVEL"

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// NewLogger returns the component-tagged JSON logger services use,
// writing to stdout at the level configured in the environment.
func NewLogger(component string) zerolog.Logger {
	return build(os.Stdout, component, levelFromEnv())
}

// NewLoggerTo is NewLogger with an explicit writer. The batch CLI logs
// to stderr so stdout stays a clean report stream.
func NewLoggerTo(w io.Writer, component string) zerolog.Logger {
	return build(w, component, levelFromEnv())
}

// NewLoggerWithLevel pins the level, ignoring the environment.
func NewLoggerWithLevel(component string, level zerolog.Level) zerolog.Logger {
	return build(os.Stdout, component, level)
}

func build(w io.Writer, component string, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func levelFromEnv() zerolog.Level {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(logLevelEnv)))
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
