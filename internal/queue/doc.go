// Package queue persists upload jobs and their delivery attempts in SQLite.
//
// The Store manages database connections, schema initialization, filtered
// search, status summaries, and the guarded status transitions workers use to
// claim jobs. Every pooled connection runs in WAL mode with a bounded busy
// timeout, and writes retry with exponential backoff when another writer holds
// the lock. Workers obtain a Dedicated store so each goroutine owns its own
// connection.
//
// Schema changes bump the version in schema.go; a mismatched database is
// rejected with ErrSchemaMismatch rather than migrated in place.
package queue
