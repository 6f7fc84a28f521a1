package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, false)
)

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: verbose,
		TimeFormat:      time.Kitchen,
		Level:           level,
		Prefix:          "citegame",
	})
}

// Init replaces the global logger. Verbose enables debug output and timestamps.
func Init(w io.Writer, verbose bool) {
	l := newLogger(w, verbose)
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Logger returns the global logger
func Logger() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) {
	Logger().Debug(msg, keyvals...)
}

// Info logs an info message
func Info(msg string, keyvals ...interface{}) {
	Logger().Info(msg, keyvals...)
}

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) {
	Logger().Warn(msg, keyvals...)
}

// Error logs an error message
func Error(msg string, keyvals ...interface{}) {
	Logger().Error(msg, keyvals...)
}

// WithPrefix returns a child logger with a prefix, e.g. "sync" or "api"
func WithPrefix(prefix string) *log.Logger {
	return Logger().WithPrefix(prefix)
}
