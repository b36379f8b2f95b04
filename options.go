// ABOUTME: Construction options for the adapter and their validation rules
// ABOUTME: Exactly one of a pre-built client or a connection config must be supplied

package turso

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conneroisu/better-auth-turso-sub001/model"
)

// Construction and lookup errors.
var (
	// ErrInvalidConfig is returned by New when the options cannot yield a
	// working connection. No partial adapter is ever returned.
	ErrInvalidConfig = errors.New("invalid adapter configuration")

	// ErrUnknownModel is returned when an operation names a model that was
	// not registered at construction.
	ErrUnknownModel = errors.New("unknown model")
)

// Config describes how the adapter reaches its database. URL selects local
// (file path or :memory:) versus remote (libsql://, https://, wss://) mode;
// setting SyncURL alongside a local URL selects embedded-replica mode, with
// SyncInterval controlling the background sync cadence.
type Config struct {
	URL          string
	AuthToken    string
	SyncURL      string
	SyncInterval time.Duration
}

// DebugLogs selects which operations emit per-statement debug logs. All
// overrides the per-operation map.
type DebugLogs struct {
	All bool
	Ops map[string]bool
}

// Options configures a new adapter. Exactly one of Client and Config must be
// set. Models are immutable for the adapter's lifetime.
type Options struct {
	// Client is a pre-built database handle. The adapter uses it as-is and
	// does not close it. Mutually exclusive with Config.
	Client *sql.DB

	// Config opens a connection owned (and closed) by the adapter.
	Config *Config

	// Models declares every entity the host framework will operate on.
	Models []model.Model

	// UsePlural appends "s" to model names when deriving table names.
	UsePlural bool

	// IntIDs makes the database assign integer primary keys instead of
	// client-side generated string ids.
	IntIDs bool

	// NumericDates stores dates as Unix epoch seconds instead of RFC 3339
	// text.
	NumericDates bool

	// DebugLogs enables per-statement logging globally or per operation.
	DebugLogs DebugLogs

	// GenerateID overrides the client-side id generator. Ignored under
	// IntIDs. Defaults to random UUIDs.
	GenerateID func() string

	// Logger receives structural log records. Defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) validate() error {
	if o.Client == nil && o.Config == nil {
		return fmt.Errorf("%w: neither client nor config supplied", ErrInvalidConfig)
	}
	if o.Client != nil && o.Config != nil {
		return fmt.Errorf("%w: client and config are mutually exclusive", ErrInvalidConfig)
	}
	if o.Config != nil && o.Config.URL == "" {
		return fmt.Errorf("%w: config.url is required", ErrInvalidConfig)
	}
	if len(o.Models) == 0 {
		return fmt.Errorf("%w: at least one model is required", ErrInvalidConfig)
	}
	for _, m := range o.Models {
		if m.Name == "" {
			return fmt.Errorf("%w: model with empty name", ErrInvalidConfig)
		}
		if len(m.Fields) == 0 {
			return fmt.Errorf("%w: model %q has no fields", ErrInvalidConfig, m.Name)
		}
		seen := map[string]struct{}{"id": {}}
		for _, f := range m.Fields {
			if !f.Type.Valid() {
				return fmt.Errorf("%w: model %q field %q has invalid type %q", ErrInvalidConfig, m.Name, f.Name, f.Type)
			}
			if _, dup := seen[f.Name]; dup {
				return fmt.Errorf("%w: model %q declares field %q twice", ErrInvalidConfig, m.Name, f.Name)
			}
			seen[f.Name] = struct{}{}
			if f.Type == model.TypeReference && f.References == "" {
				return fmt.Errorf("%w: model %q reference field %q names no target", ErrInvalidConfig, m.Name, f.Name)
			}
		}
	}
	return nil
}
