package logger

// TestLogEntry records one call made against a TestLogger.
type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []interface{}
}

// TestLogger is a Logger that records every call instead of printing
// it, so tests can assert on what a component logged without capturing
// stdout.
type TestLogger struct {
	Logs []TestLogEntry
}

var _ Logger = (*TestLogger)(nil)

func (t *TestLogger) record(severity, msg string, args ...interface{}) {
	t.Logs = append(t.Logs, TestLogEntry{Severity: severity, Message: msg, Arguments: args})
}

func (t *TestLogger) Debug(msg string, args ...interface{}) {
	t.record("DEBUG", msg, args...)
}

func (t *TestLogger) Warn(msg string, args ...interface{}) {
	t.record("WARN", msg, args...)
}

func (t *TestLogger) Error(msg string, args ...interface{}) {
	t.record("ERROR", msg, args...)
}

// NewTestLogger returns an empty TestLogger. The lower-level packages
// (persistence, twolayer, sweep, migration, pipeline) fall back to one
// of these when given a nil Logger rather than keeping a nil interface,
// so a caller constructing them directly never hits a nil-pointer panic
// on the next log call. The root Builder falls back to
// NewConsoleLogger instead.
func NewTestLogger() *TestLogger {
	return &TestLogger{Logs: make([]TestLogEntry, 0)}
}
