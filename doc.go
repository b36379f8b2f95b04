// Package turso persists a database-agnostic auth framework's entities
// (users, sessions, accounts, verification tokens, and plugin-defined
// models) into a SQLite-compatible database: a local file, a remote libsql
// endpoint, or a local file kept in periodic sync with a remote primary.
//
// # Architecture
//
// The adapter composes four internal components per call:
//
//   - schema.Registry: idempotent CREATE TABLE IF NOT EXISTS on first use,
//     with a per-model single-flight guard for concurrent first calls
//   - sqlgen.Compiler: structured filters, sorts, pagination, and data maps
//     compiled into parameterized SQL — values are always bound, never
//     interpolated
//   - coerce: bidirectional mapping between logical field types (string,
//     number, boolean, date, JSON, reference) and SQLite storage types
//   - conn.Manager: the shared connection for local, remote, or
//     embedded-replica mode, including the background sync task
//
// Every public operation runs the same fixed sequence: ensure-schema,
// compile, coerce-bind, execute, coerce-read, log. Calls carry no cross-call
// state and may run concurrently.
//
// # Connection modes
//
// The mode is resolved once at construction from the configured URLs:
//
//	turso.New(turso.Options{Config: &turso.Config{URL: "file:auth.db"}, ...})        // local
//	turso.New(turso.Options{Config: &turso.Config{URL: "libsql://db.turso.io",
//	    AuthToken: token}, ...})                                                      // remote
//	turso.New(turso.Options{Config: &turso.Config{URL: "file:auth.db",
//	    SyncURL: "libsql://db.turso.io", AuthToken: token,
//	    SyncInterval: time.Minute}, ...})                                             // embedded replica
//
// In replica mode writes land locally and the sync task exchanges state with
// the remote on the configured interval; callers must not assume
// read-after-write consistency across the sync boundary.
//
// # Error handling
//
// Construction problems surface as ErrInvalidConfig before any connection
// attempt. Failed DDL leaves the model unknown so the next call retries.
// Malformed stored values (unparseable JSON or dates) surface as
// *coerce.Error rather than silently defaulting. Unknown fields and
// operators are rejected by the compiler before any I/O. The adapter never
// retries transport failures; retry policy belongs to the caller.
//
// "Not found" is not an error: FindOne, Update, and Delete report a missing
// match as a nil record and a nil error.
package turso
