// ABOUTME: Idempotent table creation and the per-connection known-table cache
// ABOUTME: Concurrent first-use creation collapses into one DDL execution via singleflight

package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/better-auth-turso-sub001/model"
)

// Execer is the single statement-execution primitive the registry needs,
// satisfied by *sql.DB and by the connection manager.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Error reports a failed DDL execution. The model stays unknown, so the next
// call against it retries creation.
type Error struct {
	Table string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("creating table %q: %v", e.Table, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Registry tracks which model tables have been verified to exist on one
// connection. The known set only grows; it lives and dies with the adapter.
type Registry struct {
	db           Execer
	logger       *slog.Logger
	usePlural    bool
	numericDates bool
	intIDs       bool

	mu     sync.RWMutex
	known  map[string]struct{}
	flight singleflight.Group
}

// New creates an empty registry bound to one connection.
func New(db Execer, logger *slog.Logger, usePlural, numericDates, intIDs bool) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		db:           db,
		logger:       logger.With("component", "schema"),
		usePlural:    usePlural,
		numericDates: numericDates,
		intIDs:       intIDs,
		known:        map[string]struct{}{},
	}
}

// Ensure guarantees the model's table exists before returning. Known models
// return immediately without I/O. Concurrent first calls for the same model
// share one CREATE TABLE execution; the IF NOT EXISTS semantics at the
// database remain the correctness backstop either way.
func (r *Registry) Ensure(ctx context.Context, m model.Model) error {
	r.mu.RLock()
	_, ok := r.known[m.Name]
	r.mu.RUnlock()
	if ok {
		return nil
	}

	_, err, _ := r.flight.Do(m.Name, func() (any, error) {
		r.mu.RLock()
		_, ok := r.known[m.Name]
		r.mu.RUnlock()
		if ok {
			return nil, nil
		}

		ddl := r.DDL(m)
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return nil, &Error{Table: model.TableName(m.Name, r.usePlural), Err: err}
		}

		r.mu.Lock()
		r.known[m.Name] = struct{}{}
		r.mu.Unlock()

		r.logger.Debug("ensured table", "model", m.Name, "table", model.TableName(m.Name, r.usePlural))
		return nil, nil
	})
	return err
}

// DDL derives the CREATE TABLE statement for a model: primary key first,
// declared fields in order, foreign keys trailing.
func (r *Registry) DDL(m model.Model) string {
	table := model.TableName(m.Name, r.usePlural)

	var cols []string
	if r.intIDs {
		cols = append(cols, `"id" INTEGER PRIMARY KEY AUTOINCREMENT`)
	} else {
		cols = append(cols, `"id" TEXT PRIMARY KEY`)
	}

	var fks []string
	for _, f := range m.Fields {
		col := quoteIdent(f.Name) + " " + r.columnType(f)
		if f.Required {
			col += " NOT NULL"
		}
		if f.Unique {
			col += " UNIQUE"
		}
		if lit, ok := defaultLiteral(f.Default); ok {
			col += " DEFAULT " + lit
		}
		cols = append(cols, col)

		if f.Type == model.TypeReference && f.References != "" {
			target := model.TableName(f.References, r.usePlural)
			fks = append(fks, fmt.Sprintf(`FOREIGN KEY (%s) REFERENCES %s("id") ON DELETE CASCADE`, quoteIdent(f.Name), quoteIdent(target)))
		}
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(append(cols, fks...), ", "))
}

// quoteIdent produces a double-quoted SQLite identifier, doubling any
// embedded quote characters.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (r *Registry) columnType(f model.Field) string {
	switch f.Type {
	case model.TypeNumber:
		return "NUMERIC"
	case model.TypeBoolean:
		return "INTEGER"
	case model.TypeDate:
		if r.numericDates {
			return "INTEGER"
		}
		return "TEXT"
	case model.TypeReference:
		if r.intIDs {
			return "INTEGER"
		}
		return "TEXT"
	default:
		return "TEXT"
	}
}

// defaultLiteral renders a scalar default as a SQL literal. Non-scalar
// defaults are not representable in DDL and are left to the caller to fill
// in on create.
func defaultLiteral(v any) (string, bool) {
	switch d := v.(type) {
	case nil:
		return "", false
	case bool:
		if d {
			return "1", true
		}
		return "0", true
	case string:
		return "'" + strings.ReplaceAll(d, "'", "''") + "'", true
	case int, int32, int64:
		return fmt.Sprintf("%d", d), true
	case float32, float64:
		return fmt.Sprintf("%v", d), true
	default:
		return "", false
	}
}
