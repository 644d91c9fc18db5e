// Package rlog is the runtime's internal diagnostics logger: a small
// leveled interface in front of a swappable backend, the same shape
// pattern as a package-level swap guarded by a mutex, except the default
// backend here is a logrus.Logger instead of the standard library's log
// package.
package rlog

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the leveled interface the runtime logs through.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

var _ Logger = (*logrusLogger)(nil)

type logrusLogger struct {
	entry *logrus.Logger
}

func (l *logrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func newDefault() *logrusLogger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return &logrusLogger{entry: l}
}

var (
	mu      sync.RWMutex
	current = Logger(newDefault())
)

// Default returns the process-wide logger.
func Default() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetLogger swaps the process-wide logger, for tests that want to assert
// on emitted records or silence output.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// SetLevel adjusts the default logrus-backed logger's level. It is a
// no-op if the current logger was replaced via SetLogger.
func SetLevel(level logrus.Level) {
	mu.RLock()
	defer mu.RUnlock()
	if ll, ok := current.(*logrusLogger); ok {
		ll.entry.SetLevel(level)
	}
}
