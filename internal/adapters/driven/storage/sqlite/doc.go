// Package sqlite provides the SQLite-backed persistence for quarry:
// the metadata tracker ledger, the content sink's chunk store, and
// the scheduler task store, all sharing one database file.
//
// The database is opened in WAL mode with a busy timeout so that
// multiple jobs (different sources, separate processes) can read and
// write concurrently; every tracker and sink operation is a single
// statement or explicit transaction, which gives the per-operation
// isolation the ingestion job relies on.
package sqlite
