// Package log wires the engine's structured logger: a package-level
// Logger, Init(Config), and WithComponent child loggers attributing log
// lines by component, path, and backup-set.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level represents a log level, matching the LOG env var recognised by the
// CLI.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func init() {
	// Sensible default so packages can log before the CLI calls Init
	// (e.g. in unit tests).
	Init(Config{Level: InfoLevel})
}

// WithComponent creates a child logger tagged with a component name, e.g.
// "engine", "index", "store.local".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithBackupSet creates a child logger tagged with a backup set id.
func WithBackupSet(logger zerolog.Logger, id int64) zerolog.Logger {
	return logger.With().Int64("backup_set", id).Logger()
}

// WithPath creates a child logger tagged with a path key.
func WithPath(logger zerolog.Logger, path string) zerolog.Logger {
	return logger.With().Str("path", path).Logger()
}
