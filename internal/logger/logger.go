package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// represents minimum log level to display
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// converts LogLevel to slog.Level. unknown names fall back to info
func (l LogLevel) slogLevel() slog.Level {
	switch LogLevel(strings.ToLower(string(l))) {
	case LevelDebug:
		return slog.LevelDebug // most verbose, shows everything
	case LevelInfo:
		return slog.LevelInfo // standard, shows info, warn, error
	case LevelWarn:
		return slog.LevelWarn // only warnings and errors
	case LevelError:
		return slog.LevelError // only errors
	default:
		return slog.LevelInfo
	}
}

// checks a level name, case-insensitive
func ParseLevel(name string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(name))
	switch level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return level, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", name)
	}
}

// checks a format name, case-insensitive
func ValidFormat(name string) error {
	switch strings.ToLower(name) {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", name)
	}
}

// configures default slog logger with json output written to w
func InitLogger(level LogLevel, w io.Writer) {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level.slogLevel(), // minimum level to log
		AddSource: false,             // adds file:line information to logs
	})

	// set as default logger for entire application
	slog.SetDefault(slog.New(handler))

	slog.Debug("Logger initialized",
		"level", level,
		"format", "json",
	)
}

// creates human readable text logger writing to w
func InitTextLogger(level LogLevel, w io.Writer) {
	// TextHandler produces output like:
	// time=2024-02-10T10:00:00.000Z level=WARN msg="Reply store unavailable" error=...
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level.slogLevel(),
		AddSource: false,
	})

	slog.SetDefault(slog.New(handler))

	slog.Debug("Logger initialized",
		"level", level,
		"format", "text",
	)
}

// picks the handler by format name (json or text)
func Init(level string, format string, w io.Writer) {
	if strings.EqualFold(format, "json") {
		InitLogger(LogLevel(level), w)
		return
	}
	InitTextLogger(LogLevel(level), w)
}
