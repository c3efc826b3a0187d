// Package logging builds slog handlers for the coordinator and its
// participants: a human-oriented text handler for terminals and a JSON
// handler for machine consumption.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Format selects the log output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// NewHandler builds a slog handler for the given format, level and writer.
// A nil writer defaults to stderr for text and stdout for JSON.
func NewHandler(format Format, level string, writer io.Writer) (slog.Handler, error) {
	switch format {
	case FormatText, "":
		return TextHandler(level, writer), nil
	case FormatJSON:
		return JSONHandler(level, writer), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

// TextHandler builds a terminal-friendly text handler. The "trace" level
// enables caller reporting on top of debug output.
func TextHandler(level string, writer io.Writer) slog.Handler {
	if writer == nil {
		writer = os.Stderr
	}

	reportCaller := false
	reportTimestamp := false
	lvl := log.InfoLevel
	switch strings.ToLower(level) {
	case "trace":
		reportCaller = true
		reportTimestamp = true
		lvl = log.DebugLevel
	case "debug":
		reportTimestamp = true
		lvl = log.DebugLevel
	case "info":
		lvl = log.InfoLevel
	case "warn", "warning":
		lvl = log.WarnLevel
	case "error":
		lvl = log.ErrorLevel
	}

	return log.NewWithOptions(writer, log.Options{
		ReportTimestamp: reportTimestamp,
		ReportCaller:    reportCaller,
		Level:           lvl,
	})
}

// JSONHandler builds a JSON handler for log aggregation.
func JSONHandler(level string, writer io.Writer) slog.Handler {
	if writer == nil {
		writer = os.Stdout
	}

	addSource := false
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "trace":
		addSource = true
		lvl = slog.LevelDebug
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
	})
}

// SetDefault installs a text handler at the given level as the process-wide
// default logger.
func SetDefault(level string) {
	slog.SetDefault(slog.New(TextHandler(level, nil)))
}
