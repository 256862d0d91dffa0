// Package store provides the SQLite-backed storage for catalog tables.
//
// The store owns every row. Tables are declared from a catalog.Catalog by
// CreateSchema and written through transactions (Tx) by the loader.
//
// # Schema
//
// Every table gets an INTEGER PRIMARY KEY id. Dimension keys are UNIQUE,
// links are REFERENCES constraints with one index each, non-negative
// measures and span order are CHECK constraints. CreateSchema only creates
// absent tables; present ones are compared against the declaration and a
// mismatch is a catalog.SchemaError. Nothing is ever dropped or altered.
//
// # Deterministic Reads
//
// All reads order by id (ORDER BY id ASC), so identical stores produce
// identical output.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - One open connection: all statements of a transaction share it
package store
