// ABOUTME: Optional per-operation SQL debug logging with no effect on control flow
// ABOUTME: Disabled loggers short-circuit before any formatting work happens

package debuglog

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Operation kinds recognized by the logger configuration.
const (
	OpCreate     = "create"
	OpFindOne    = "findOne"
	OpFindMany   = "findMany"
	OpUpdate     = "update"
	OpUpdateMany = "updateMany"
	OpDelete     = "delete"
	OpDeleteMany = "deleteMany"
	OpCount      = "count"
)

// Config selects which operation kinds are logged. All overrides the
// per-operation map.
type Config struct {
	All bool
	Ops map[string]bool
}

// Logger emits one structured record per executed statement, plus a colored
// human-readable line at debug level. Logging is purely observational; it
// never touches arguments, results, or errors.
type Logger struct {
	cfg  Config
	log  *slog.Logger
	op   func(a ...any) string
	stmt func(a ...any) string
	fail func(a ...any) string
}

// New builds a logger from the debug configuration. A zero Config yields a
// logger whose calls all return immediately.
func New(cfg Config, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{
		cfg:  cfg,
		log:  log.With("component", "adapter"),
		op:   color.New(color.FgCyan, color.Bold).SprintFunc(),
		stmt: color.New(color.FgWhite).SprintFunc(),
		fail: color.New(color.FgRed).SprintFunc(),
	}
}

// Enabled reports whether statements for the given operation kind are logged.
func (l *Logger) Enabled(op string) bool {
	if l == nil {
		return false
	}
	return l.cfg.All || l.cfg.Ops[op]
}

// Log records one executed statement. rows is the result count for reads and
// the affected count for writes; -1 means unknown.
func (l *Logger) Log(op, query string, args []any, d time.Duration, rows int64, err error) {
	if !l.Enabled(op) {
		return
	}

	line := fmt.Sprintf("%s %s [%.2fms]%s",
		l.op(op),
		l.stmt(compact(query)),
		float64(d.Nanoseconds())/1e6,
		rowSuffix(rows))
	if len(args) > 0 {
		line += " " + formatArgs(args)
	}
	if err != nil {
		line += " " + l.fail(err.Error())
	}

	l.log.Debug(line,
		"op", op,
		"duration_ms", float64(d.Nanoseconds())/1e6,
		"rows", rows,
		"error", err)
}

func rowSuffix(rows int64) string {
	if rows < 0 {
		return ""
	}
	return fmt.Sprintf(" [rows:%d]", rows)
}

// compact collapses a statement onto one line for log output.
func compact(query string) string {
	fields := strings.Fields(query)
	return strings.Join(fields, " ")
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			parts[i] = fmt.Sprintf("%q", v)
		case nil:
			parts[i] = "NULL"
		default:
			parts[i] = fmt.Sprintf("%v", v)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
