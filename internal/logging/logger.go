// Package logging provides structured logging for the Visitation Log core.
//
// It is a thin wrapper over logrus so call sites can attach context maps
// without depending on the logging backend directly.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Fields carries structured context attached to a log entry.
type Fields map[string]interface{}

var (
	global *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger. Subsequent calls are no-ops.
func Init(out io.Writer, level string) {
	once.Do(func() {
		global = newLogger(out, level)
	})
}

// Get returns the global logger, initializing it with defaults if needed.
func Get() *logrus.Logger {
	if global == nil {
		Init(os.Stdout, "info")
	}
	return global
}

func newLogger(out io.Writer, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	return l
}

// Debug logs a debug message with optional context.
func Debug(message string, fields Fields) {
	entry(fields).Debug(message)
}

// Info logs an info message with optional context.
func Info(message string, fields Fields) {
	entry(fields).Info(message)
}

// Warn logs a warning message with optional context.
func Warn(message string, fields Fields) {
	entry(fields).Warn(message)
}

// Error logs an error message with the causing error and optional context.
func Error(message string, err error, fields Fields) {
	e := entry(fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

func entry(fields Fields) *logrus.Entry {
	if len(fields) == 0 {
		return logrus.NewEntry(Get())
	}
	return Get().WithFields(logrus.Fields(fields))
}
