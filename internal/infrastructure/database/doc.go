// Package database provides SQLite connectivity for Spectra Core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema setup for parameter history and the command log
//   - Connection pooling and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads during writes
//   - Busy timeout prevents lock contention errors
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/spectra.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
// The schema is applied idempotently on every Open; there is no separate
// migration step.
package database
