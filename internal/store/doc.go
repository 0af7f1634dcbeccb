// Package store runs compiled statements against a database/sql backend.
//
// Drivers for SQLite (mattn/go-sqlite3), PostgreSQL (lib/pq) and MySQL
// (go-sql-driver/mysql) are registered by this package; the dialect is
// picked from the driver name passed to Open.
//
// # Tables
//
// CreateTables derives DDL from entity metadata: one table per entity and
// one link table per forward many-to-many relation. Foreign keys are
// declared with REFERENCES so SQLite enforces them.
//
// # Database Configuration
//
// SQLite connections are limited to one open connection and run with:
//   - busy_timeout=5000: wait for lock contention
//   - foreign_keys=ON: enforce REFERENCES
//
// OpenMemory uses a uniquely named shared-cache in-memory database so
// parallel tests never see each other's tables.
package store
