package internal

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// Logger provides leveled logging with an optional component tag
type Logger struct {
	level     LogLevel
	component string
}

// NewLogger creates a new logger with the specified level
func NewLogger(level LogLevel) *Logger {
	return &Logger{level: level}
}

// ParseLogLevel maps ERROR/WARN/INFO/DEBUG/TRACE to a level, falling back to INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError
	case "WARN":
		return LogLevelWarn
	case "DEBUG":
		return LogLevelDebug
	case "TRACE":
		return LogLevelTrace
	default:
		return LogLevelInfo
	}
}

// NewDefaultLogger creates a logger based on LOG_LEVEL environment variable
func NewDefaultLogger() *Logger {
	return &Logger{level: ParseLogLevel(os.Getenv("LOG_LEVEL"))}
}

// With returns a logger that tags every line with component.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return &Logger{level: LogLevelInfo, component: component}
	}
	return &Logger{level: l.level, component: component}
}

func (l *Logger) emit(tag, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.component != "" {
		log.Printf("[%s] [%s] %s", tag, l.component, msg)
		return
	}
	log.Printf("[%s] %s", tag, msg)
}

func (l *Logger) enabled(level LogLevel) bool {
	return l != nil && l.level >= level
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	if l.enabled(LogLevelError) {
		l.emit("ERROR", format, args...)
	}
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.enabled(LogLevelWarn) {
		l.emit("WARN", format, args...)
	}
}

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) {
	if l.enabled(LogLevelInfo) {
		l.emit("INFO", format, args...)
	}
}

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.enabled(LogLevelDebug) {
		l.emit("DEBUG", format, args...)
	}
}

// Trace logs trace messages
func (l *Logger) Trace(format string, args ...interface{}) {
	if l.enabled(LogLevelTrace) {
		l.emit("TRACE", format, args...)
	}
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// Global logger instance
var DefaultLogger = NewDefaultLogger()
