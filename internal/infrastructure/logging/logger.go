package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/openvent/helios-core/internal/infrastructure/config"
)

// Logger is a thin wrapper around slog.Logger carrying the service defaults.
//
// All methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from config: output destination, format (json or
// text), level filter, and the service/version default fields every record
// carries.
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg).WithAttrs([]slog.Attr{
		slog.String("service", "helios-core"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

// With returns a new Logger with additional default attributes, e.g.
//
//	busLog := log.With("component", "modbus")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a JSON/info/stdout logger for use before the config file
// has been loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

func newHandler(cfg config.LoggingConfig) slog.Handler {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(output, opts)
	}
	return slog.NewJSONHandler(output, opts)
}

// parseLevel maps a config string to a slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
