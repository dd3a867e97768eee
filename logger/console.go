package logger

import (
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/mattn/go-isatty"
)

const isWindows = runtime.GOOS == "windows"

var noColor = os.Getenv("TERM") == "dumb" ||
	(!isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()))

func color(val string) string {
	if isWindows || noColor {
		return ""
	}
	return val
}

const (
	Reset   = "\033[0m"
	Blue    = "\033[34;1m"
	Magenta = "\033[35;1m"
	Red     = "\033[31;1m"
)

// consoleLogger writes level-colored lines through the standard log
// package, gated by a minimum LogLevel.
type consoleLogger struct {
	level LogLevel
}

var _ Logger = (*consoleLogger)(nil)

func (c *consoleLogger) line(level LogLevel, levelColor, levelString, msg string, args ...interface{}) {
	if level < c.level {
		return
	}
	log.Printf("%s[%s]%s %s\n", color(levelColor), levelString, color(Reset), fmt.Sprintf(msg, args...))
}

// Debug logs a low-severity diagnostic, e.g. a disk write that failed
// but left the memory tier consistent.
func (c *consoleLogger) Debug(msg string, args ...interface{}) {
	c.line(LevelDebug, Blue, "DEBUG", msg, args...)
}

// Warn logs a condition worth an operator's attention but not fatal to
// the current call, e.g. the disk budget still exceeded after
// reclamation, or low free space on the cache directory's filesystem.
func (c *consoleLogger) Warn(msg string, args ...interface{}) {
	c.line(LevelWarn, Magenta, "WARN", msg, args...)
}

// Error logs a failure that aborted the current operation, e.g. a
// failed startup migration or sweep.
func (c *consoleLogger) Error(msg string, args ...interface{}) {
	c.line(LevelError, Red, "ERROR", msg, args...)
}

// NewConsoleLogger returns a Logger that writes to the standard log
// package, colorized when stdout is a terminal. With no argument its
// minimum level comes from RXCACHE_LOG_LEVEL; this is the default a
// Builder reaches for when no Logger was supplied explicitly.
func NewConsoleLogger(levels ...LogLevel) Logger {
	if len(levels) > 0 {
		return &consoleLogger{level: levels[0]}
	}
	return &consoleLogger{level: GetLevelFromEnv()}
}
