// ABOUTME: Adapter construction, identity descriptor, and lifecycle management
// ABOUTME: Composes the connection manager, schema registry, compiler, and debug logger

package turso

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/conneroisu/better-auth-turso-sub001/internal/conn"
	"github.com/conneroisu/better-auth-turso-sub001/internal/debuglog"
	"github.com/conneroisu/better-auth-turso-sub001/internal/schema"
	"github.com/conneroisu/better-auth-turso-sub001/internal/sqlgen"
	"github.com/conneroisu/better-auth-turso-sub001/model"
)

// Info is the fixed adapter descriptor exposed to the host framework. The
// capability flags tell the framework which logical types it may hand the
// adapter unencoded; they mirror the coercion layer exactly.
type Info struct {
	ID   string
	Name string

	SupportsJSON       bool
	SupportsDates      bool
	SupportsBooleans   bool
	SupportsNumericIDs bool
}

// Adapter persists the host framework's entities into a SQLite-compatible
// database. All state is owned by the instance; there are no process-wide
// singletons, and independent calls may run concurrently.
type Adapter struct {
	conn     *conn.Manager
	registry *schema.Registry
	compiler *sqlgen.Compiler
	debug    *debuglog.Logger
	logger   *slog.Logger

	models map[string]model.Model
	intIDs bool
	genID  func() string
}

// New builds an adapter from the given options. Construction fails with
// ErrInvalidConfig before any connection attempt when the options are
// inconsistent; otherwise the connection is established eagerly so that a
// returned adapter is always usable.
func New(opts Options) (*Adapter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "turso-adapter")

	var manager *conn.Manager
	if opts.Client != nil {
		manager = conn.NewWithDB(opts.Client, logger)
	} else {
		var err error
		manager, err = conn.Open(conn.Config{
			URL:          opts.Config.URL,
			AuthToken:    opts.Config.AuthToken,
			SyncURL:      opts.Config.SyncURL,
			SyncInterval: opts.Config.SyncInterval,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("opening connection: %w", err)
		}
	}

	models := make(map[string]model.Model, len(opts.Models))
	for _, m := range opts.Models {
		models[m.Name] = m
	}

	genID := opts.GenerateID
	if genID == nil {
		genID = uuid.NewString
	}

	return &Adapter{
		conn:     manager,
		registry: schema.New(manager, logger, opts.UsePlural, opts.NumericDates, opts.IntIDs),
		compiler: &sqlgen.Compiler{
			UsePlural:    opts.UsePlural,
			NumericDates: opts.NumericDates,
			IntIDs:       opts.IntIDs,
		},
		debug:  debuglog.New(debuglog.Config{All: opts.DebugLogs.All, Ops: opts.DebugLogs.Ops}, logger),
		logger: logger,
		models: models,
		intIDs: opts.IntIDs,
		genID:  genID,
	}, nil
}

// Info returns the adapter's identity and capability flags.
func (a *Adapter) Info() Info {
	return Info{
		ID:                 "turso",
		Name:               "Turso Adapter",
		SupportsJSON:       true,
		SupportsDates:      true,
		SupportsBooleans:   true,
		SupportsNumericIDs: a.intIDs,
	}
}

// Sync triggers one replica sync exchange. Outside embedded-replica mode it
// is a no-op.
func (a *Adapter) Sync() error {
	return a.conn.Sync()
}

// Close releases the connection and stops the replica sync task if one is
// running. It is safe to call more than once.
func (a *Adapter) Close() error {
	return a.conn.Close()
}

// modelFor resolves a registered model by name.
func (a *Adapter) modelFor(name string) (model.Model, error) {
	m, ok := a.models[name]
	if !ok {
		return model.Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m, nil
}

// ensure creates the model's table, creating referenced models' tables first
// so foreign keys always point at existing tables. Reference cycles are cut
// by the visited set.
func (a *Adapter) ensure(ctx context.Context, m model.Model) error {
	return a.ensureVisit(ctx, m, map[string]struct{}{})
}

func (a *Adapter) ensureVisit(ctx context.Context, m model.Model, visited map[string]struct{}) error {
	if _, ok := visited[m.Name]; ok {
		return nil
	}
	visited[m.Name] = struct{}{}

	for _, f := range m.Fields {
		if f.Type != model.TypeReference {
			continue
		}
		target, ok := a.models[f.References]
		if !ok {
			// Plugin-defined references may point at tables managed
			// elsewhere; creation is skipped, not failed.
			continue
		}
		if err := a.ensureVisit(ctx, target, visited); err != nil {
			return err
		}
	}

	return a.registry.Ensure(ctx, m)
}
