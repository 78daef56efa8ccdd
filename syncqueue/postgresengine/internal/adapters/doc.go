// Package adapters provides database adapter implementations for the
// PostgreSQL operation queue.
//
// The queue itself only needs plain query execution and result handling, so
// the adapters present a minimal DBAdapter interface over the supported
// PostgreSQL libraries: pgxpool.Pool, sql.DB, and sqlx.DB. All three behave
// equivalently; the choice follows whatever connection type the host
// application already manages.
package adapters
