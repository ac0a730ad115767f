package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a SQLite connection backing the default, restart-safe
// implementations of the retry counter map, history cache, recvChats
// accumulator, call-offer cache, and outbound message lookup described in
// spec.md §3. None of these are required to be SQLite-backed by the spec —
// callers of the public API may supply their own in-memory or
// externally-persisted implementations instead — but this is the teacher's
// own persistence pattern, repurposed for the pipeline's bookkeeping rather
// than for chat history.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite connection with WAL mode and recommended
// pragmas, then applies pending migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	db := &DB{sqlDB}
	if _, err := db.Migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}
