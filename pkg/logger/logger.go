package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

var levelVar = new(slog.LevelVar)

// Logger is a component-scoped wrapper around slog
type Logger struct {
	slog      *slog.Logger
	component string
}

// New creates a new logger for the given component
func New(component string) *Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar})
	sl := slog.New(handler)
	if component != "" {
		sl = sl.With("component", component)
	}
	return &Logger{slog: sl, component: component}
}

// WithChat returns a logger that also carries the chat id
func (l *Logger) WithChat(chatID int64) *Logger {
	return &Logger{
		slog:      l.slog.With("chat", chatID),
		component: l.component,
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.slog.Info(fmt.Sprintf(format, v...))
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.slog.Error(fmt.Sprintf(format, v...))
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.slog.Debug(fmt.Sprintf(format, v...))
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.slog.Warn(fmt.Sprintf(format, v...))
}

// SetLevel sets the minimum level for all loggers ("debug", "info", "warn", "error")
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// Global logger instance for application-wide logging
var Global = New("")

// SetGlobal sets the global logger
func SetGlobal(logger *Logger) {
	Global = logger
}
