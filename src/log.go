package b1ee

/*------------------------------------------------------------------
 *
 * Purpose: Leveled logging for connection lifecycle, command
 *          dispatch, and scheduler diagnostics.
 *
 * Grounded on the teacher's textcolor.go level-gated dw_printf
 * pattern (every call site is tagged with a severity and dropped
 * below the configured level), reimplemented against a real logging
 * library - charmbracelet/log is in the teacher's go.mod but no
 * teacher file actually imports it, so this is the first real use of
 * that dependency in the corpus.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the minimal logging surface the core depends on, so
// tests can supply a no-op or recording implementation without
// pulling in charmbracelet/log.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type charmLogger struct {
	l *charmlog.Logger
}

func (c *charmLogger) Debugf(format string, args ...any) { c.l.Debug(fmt.Sprintf(format, args...)) }
func (c *charmLogger) Infof(format string, args ...any)  { c.l.Info(fmt.Sprintf(format, args...)) }
func (c *charmLogger) Warnf(format string, args ...any)  { c.l.Warn(fmt.Sprintf(format, args...)) }
func (c *charmLogger) Errorf(format string, args ...any) { c.l.Error(fmt.Sprintf(format, args...)) }

// NewLogger builds a Logger writing to stderr at the given level
// ("debug", "info", "warn", "error") in either "text" or "json"
// format, per SPEC_FULL.md 4.8.
func NewLogger(level, format string) Logger {
	opts := charmlog.Options{
		ReportTimestamp: true,
		Level:           parseLevel(level),
	}
	if format == "json" {
		opts.Formatter = charmlog.JSONFormatter
	}

	return &charmLogger{l: charmlog.NewWithOptions(os.Stderr, opts)}
}

func parseLevel(level string) charmlog.Level {
	switch level {
	case "debug":
		return charmlog.DebugLevel
	case "warn":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}
