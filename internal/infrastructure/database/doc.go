// Package database provides SQLite connection management and schema
// migrations for BluLok Core.
//
// The database is opened with WAL mode and a busy timeout, and the
// connection pool is restricted to a single connection since SQLite
// only supports one writer at a time. Migrations are embedded .sql
// files applied in filename order, each in its own transaction, and
// tracked in the schema_migrations table.
//
// Timestamps are stored as RFC3339 TEXT and booleans as 0/1 integers
// throughout the schema.
package database
