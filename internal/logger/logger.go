package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

// LogLevel represents the severity of a log message
type LogLevel int32

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	SILENT // No logging
)

var (
	levelNames = [...]string{
		DEBUG:  "DEBUG",
		INFO:   "INFO",
		WARN:   "WARN",
		ERROR:  "ERROR",
		SILENT: "SILENT",
	}

	levelColors = [...]string{
		DEBUG: "\033[36m", // Cyan
		INFO:  "\033[32m", // Green
		WARN:  "\033[33m", // Yellow
		ERROR: "\033[31m", // Red
	}
)

const resetColor = "\033[0m"

// Logger writes leveled lines tagged with the emitting module.
type Logger struct {
	level    atomic.Int32
	useColor bool
	out      *log.Logger
}

// Module is a Logger bound to one module tag.
type Module struct {
	l    *Logger
	name string
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Init installs the process-wide logger. Later calls replace it.
func Init(level LogLevel, output io.Writer, useColor bool) {
	l := New(level, output, useColor)
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// New creates a new Logger instance
func New(level LogLevel, output io.Writer, useColor bool) *Logger {
	if output == nil {
		output = os.Stderr
	}
	l := &Logger{
		useColor: useColor,
		out:      log.New(output, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	l.level.Store(int32(level))
	return l
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return New(SILENT, io.Discard, false)
}

// SetLevel changes the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return LogLevel(l.level.Load())
}

// For returns a logger bound to module.
func (l *Logger) For(module string) Module {
	return Module{l: l, name: module}
}

func (l *Logger) logf(level LogLevel, module, format string, args ...any) {
	if level < l.GetLevel() || level >= SILENT {
		return
	}

	prefix := "[" + levelNames[level] + "]"
	if l.useColor {
		prefix = levelColors[level] + prefix + resetColor
	}
	if module != "" {
		prefix += " [" + module + "]"
	}
	l.out.Printf("%s %s", prefix, fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func (l *Logger) Debug(module, format string, args ...any) { l.logf(DEBUG, module, format, args...) }

// Info logs an info message
func (l *Logger) Info(module, format string, args ...any) { l.logf(INFO, module, format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(module, format string, args ...any) { l.logf(WARN, module, format, args...) }

// Error logs an error message
func (l *Logger) Error(module, format string, args ...any) { l.logf(ERROR, module, format, args...) }

func (m Module) Debug(format string, args ...any) { m.logger().logf(DEBUG, m.name, format, args...) }
func (m Module) Info(format string, args ...any)  { m.logger().logf(INFO, m.name, format, args...) }
func (m Module) Warn(format string, args ...any)  { m.logger().logf(WARN, m.name, format, args...) }
func (m Module) Error(format string, args ...any) { m.logger().logf(ERROR, m.name, format, args...) }

// Name returns the module tag.
func (m Module) Name() string { return m.name }

// logger falls back to the process-wide logger so a zero Module still works.
func (m Module) logger() *Logger {
	if m.l != nil {
		return m.l
	}
	return current()
}

func current() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l == nil {
		return discard
	}
	return l
}

var discard = Discard()

// For returns a module logger that follows the process-wide logger.
func For(module string) Module {
	return Module{name: module}
}

// Global logger functions (use default logger)

// SetLevel sets the global log level
func SetLevel(level LogLevel) { current().SetLevel(level) }

// GetLevel returns the global log level
func GetLevel() LogLevel {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	if defaultLogger == nil {
		return INFO
	}
	return defaultLogger.GetLevel()
}

func Debug(module, format string, args ...any) { current().Debug(module, format, args...) }
func Info(module, format string, args ...any)  { current().Info(module, format, args...) }
func Warn(module, format string, args ...any)  { current().Warn(module, format, args...) }
func Error(module, format string, args ...any) { current().Error(module, format, args...) }

// ParseLevel parses a log level string
func ParseLevel(s string) (LogLevel, error) {
	switch s {
	case "debug", "DEBUG":
		return DEBUG, nil
	case "info", "INFO", "":
		return INFO, nil
	case "warn", "WARN", "warning", "WARNING":
		return WARN, nil
	case "error", "ERROR":
		return ERROR, nil
	case "silent", "SILENT", "none", "NONE":
		return SILENT, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %s", s)
	}
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}
