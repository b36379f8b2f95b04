// ABOUTME: Connection manager for local, remote, and embedded-replica SQLite modes
// ABOUTME: Owns the sql.DB, the replica sync ticker, and idempotent shutdown

package conn

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	golibsql "github.com/tursodatabase/go-libsql"
	libsqlclient "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Mode identifies how the adapter reaches its database.
type Mode string

const (
	// ModeLocal is a file-backed or in-memory store with no network.
	ModeLocal Mode = "local"
	// ModeRemote talks to a libsql endpoint over the network.
	ModeRemote Mode = "remote"
	// ModeReplica is a local file kept in periodic sync with a remote
	// primary. Reads and writes stay local; sync runs in the background.
	ModeReplica Mode = "replica"
)

// Config describes one connection. URL decides the base mode; a SyncURL on
// top of a local URL selects replica mode.
type Config struct {
	URL          string
	AuthToken    string
	SyncURL      string
	SyncInterval time.Duration
}

// Mode resolves the connection mode from the configured URLs.
func (c Config) Mode() Mode {
	if isRemoteURL(c.URL) {
		return ModeRemote
	}
	if c.SyncURL != "" {
		return ModeReplica
	}
	return ModeLocal
}

func isRemoteURL(url string) bool {
	for _, scheme := range []string{"libsql://", "https://", "http://", "wss://", "ws://"} {
		if strings.HasPrefix(url, scheme) {
			return true
		}
	}
	return false
}

// syncable is the replica sync surface, satisfied by the go-libsql connector.
type syncable interface {
	Sync() error
	Close() error
}

// Manager owns the database handle shared by every adapter call. It is safe
// for concurrent statement execution; database/sql provides the pooling.
type Manager struct {
	db     *sql.DB
	mode   Mode
	logger *slog.Logger
	ownsDB bool

	replica    syncable
	cancelSync context.CancelFunc
	syncDone   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Open resolves the configured mode and establishes the connection. The
// replica background sync starts here when a sync interval is configured;
// without one, syncing is on demand via Sync.
func Open(cfg Config, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "conn")

	m := &Manager{mode: cfg.Mode(), logger: logger, ownsDB: true}

	switch m.mode {
	case ModeLocal:
		db, err := openLocal(cfg.URL)
		if err != nil {
			return nil, err
		}
		m.db = db

	case ModeRemote:
		connector, err := libsqlclient.NewConnector(cfg.URL, libsqlclient.WithAuthToken(cfg.AuthToken))
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", cfg.URL, err)
		}
		m.db = sql.OpenDB(connector)

	case ModeReplica:
		path := localPath(cfg.URL)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		connector, err := golibsql.NewEmbeddedReplicaConnector(path, cfg.SyncURL,
			golibsql.WithAuthToken(cfg.AuthToken))
		if err != nil {
			return nil, fmt.Errorf("opening embedded replica: %w", err)
		}
		m.replica = connector
		m.db = sql.OpenDB(connector)
		if cfg.SyncInterval > 0 {
			m.startSync(cfg.SyncInterval)
		}
	}

	m.logger.Info("connection opened", "mode", m.mode)
	return m, nil
}

// NewWithDB wraps a caller-supplied database handle. The manager does not
// close a handle it did not open.
func NewWithDB(db *sql.DB, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{db: db, mode: ModeLocal, logger: logger.With("component", "conn")}
}

// openLocal opens a file-backed or in-memory store with the WAL and
// foreign-key pragmas applied. Parent directories are created if needed.
func openLocal(url string) (*sql.DB, error) {
	path := localPath(url)

	memory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if memory {
		// Each pooled connection of an in-memory database would see its
		// own empty store; pin the pool to a single connection.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return db, nil
}

// localPath strips the file: prefix accepted in connection URLs.
func localPath(url string) string {
	return strings.TrimPrefix(url, "file:")
}

// Mode reports the resolved connection mode.
func (m *Manager) Mode() Mode { return m.mode }

// DB exposes the underlying handle for callers that need the raw pool.
func (m *Manager) DB() *sql.DB { return m.db }

// QueryContext executes a read statement.
func (m *Manager) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return m.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a single-row read statement.
func (m *Manager) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return m.db.QueryRowContext(ctx, query, args...)
}

// ExecContext executes a write statement.
func (m *Manager) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return m.db.ExecContext(ctx, query, args...)
}

// Sync triggers one replica sync exchange with the remote primary. It is a
// no-op outside replica mode.
func (m *Manager) Sync() error {
	if m.replica == nil {
		return nil
	}
	if err := m.replica.Sync(); err != nil {
		return fmt.Errorf("syncing replica: %w", err)
	}
	return nil
}

// startSync launches the periodic sync task. Operations never wait on it;
// replica mode trades read-your-remote-writes for local latency.
func (m *Manager) startSync(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelSync = cancel
	m.syncDone = make(chan struct{})

	go func() {
		defer close(m.syncDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Sync(); err != nil {
					m.logger.Warn("background sync failed", "error", err)
					continue
				}
				m.logger.Debug("replica synced")
			}
		}
	}()
}

// Close cancels the background sync task and releases the client. It is safe
// to call more than once; only the first call does work.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		if m.cancelSync != nil {
			m.cancelSync()
			<-m.syncDone
		}
		if m.ownsDB && m.db != nil {
			m.closeErr = m.db.Close()
		}
		if m.replica != nil {
			if err := m.replica.Close(); err != nil && m.closeErr == nil {
				m.closeErr = err
			}
		}
		m.logger.Info("connection closed", "mode", m.mode)
	})
	return m.closeErr
}
