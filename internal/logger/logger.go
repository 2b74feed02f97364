// Package logger provides the structured logger shared by the grader's
// commands and servers.
//
// New writes to stderr. Stdout is reserved for MCP protocol messages and
// CLI JSON output.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Fields carries structured key/value context for one log entry.
type Fields map[string]interface{}

// Logger provides structured logging with a component tag.
type Logger interface {
	Info(component, message string, fields Fields)
	Error(component string, err error, fields Fields)
	Warning(component, message string, fields Fields)
	Debug(component, message string, fields Fields)
}

// Formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ParseLevel maps a config level name to a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level: %s", s)
	}
}

// New builds a zerolog-backed logger writing to stderr in the given format.
func New(level, format string) (*ZerologAdapter, error) {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string) (*ZerologAdapter, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(format) {
	case "", FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: true}
	case FormatJSON:
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
	return NewZerolog(w, lvl), nil
}

// ZerologAdapter implements Logger on top of zerolog.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerolog wraps a zerolog logger writing JSON lines to writer.
func NewZerolog(writer io.Writer, level zerolog.Level) *ZerologAdapter {
	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &ZerologAdapter{logger: logger}
}

func (z *ZerologAdapter) Info(component, message string, fields Fields) {
	z.emit(z.logger.Info(), component, message, fields)
}

func (z *ZerologAdapter) Error(component string, err error, fields Fields) {
	e := z.logger.Error()
	if e.Enabled() {
		e = e.Err(err)
	}
	z.emit(e, component, "operation failed", fields)
}

func (z *ZerologAdapter) Warning(component, message string, fields Fields) {
	z.emit(z.logger.Warn(), component, message, fields)
}

func (z *ZerologAdapter) Debug(component, message string, fields Fields) {
	z.emit(z.logger.Debug(), component, message, fields)
}

func (z *ZerologAdapter) emit(event *zerolog.Event, component, message string, fields Fields) {
	if !event.Enabled() {
		return
	}

	event = event.Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Info(string, string, Fields)    {}
func (Nop) Error(string, error, Fields)    {}
func (Nop) Warning(string, string, Fields) {}
func (Nop) Debug(string, string, Fields)   {}
