package common

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a logger recording every entry at debug level and
// above, so tests can make assertions against it.
type TestLogger struct {
	*zap.Logger
	logs *observer.ObservedLogs
	t    testing.TB
}

// NewTestLogger constructs a test logger we can make assertions against.
func NewTestLogger(t testing.TB) *TestLogger {
	core, logs := observer.New(zapcore.DebugLevel)
	return &TestLogger{
		Logger: zap.New(core),
		logs:   logs,
		t:      t,
	}
}

// Count returns the number of entries logged with the given message.
func (tl *TestLogger) Count(msg string) int {
	return tl.logs.FilterMessage(msg).Len()
}

// Entries returns every entry logged with the given message.
func (tl *TestLogger) Entries(msg string) []observer.LoggedEntry {
	return tl.logs.FilterMessage(msg).All()
}

// RequireLogged fails the test unless exactly one entry was logged
// with the given message, and returns it.
func (tl *TestLogger) RequireLogged(msg string) observer.LoggedEntry {
	entries := tl.Entries(msg)
	require.Len(tl.t, entries, 1, "log entries with message %q", msg)
	return entries[0]
}
