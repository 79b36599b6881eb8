// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// We use modernc.org/sqlite (a pure Go translation of SQLite) instead of
// mattn/go-sqlite3 so the binary builds without CGo and cross-compiles
// anywhere Go runs. The driver registers itself with database/sql under the
// name "sqlite" via the blank import below.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool. The repositories hang off it via Notes
// and Users. The server owns the lifecycle: New opens it at startup, Close
// runs during graceful shutdown.
type DB struct {
	conn *sql.DB
}

// Notes returns the note repository backed by this connection pool.
func (db *DB) Notes() *NoteRepo {
	return &NoteRepo{conn: db.conn}
}

// Users returns the user repository backed by this connection pool.
func (db *DB) Users() *UserRepo {
	return &UserRepo{conn: db.conn}
}

// New opens the SQLite database at dbPath and runs migrations.
// Use ":memory:" in tests for an isolated throwaway database.
func New(dbPath string) (*DB, error) {
	// Pragmas are per-connection state and database/sql pools connections,
	// so they have to ride in the DSN, where the driver applies them to
	// every connection it opens. WAL allows concurrent reads while a write
	// is in progress. Foreign keys are off by default in SQLite, and
	// notes.uploaded_by references users(id) with ON DELETE CASCADE.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate empty database, so the
	// pool must never grow past one for the schema to stay visible.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// Ping forces a real connection now, so a bad path or permissions issue
	// surfaces here instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it idempotent,
// so this is safe to run on every startup.
func (db *DB) migrate() error {
	// google_id/microsoft_id are nullable and unique-when-present: SQLite
	// UNIQUE indexes ignore NULLs, so multiple unlinked accounts coexist
	// while a linked provider ID can belong to only one user.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL DEFAULT 'user',
			google_id     TEXT,
			microsoft_id  TEXT,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_google_id ON users(google_id) WHERE google_id IS NOT NULL;
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_microsoft_id ON users(microsoft_id) WHERE microsoft_id IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS notes (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			course      TEXT NOT NULL,
			professor   TEXT NOT NULL,
			semester    TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			file_key    TEXT NOT NULL UNIQUE,
			file_name   TEXT NOT NULL,
			file_size   INTEGER NOT NULL DEFAULT 0,
			file_type   TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'pending'
			            CHECK (status IN ('pending', 'approved', 'rejected')),
			uploaded_by TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			approved_by TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_notes_status ON notes(status);
		CREATE INDEX IF NOT EXISTS idx_notes_uploaded_by ON notes(uploaded_by);
		CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating notes table: %w", err)
	}

	return nil
}
