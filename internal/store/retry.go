package store

import (
	"database/sql"
	"errors"
	"time"
)

// RetryCount returns the current retry counter for id, or 0 if no entry
// exists (the Retry Requester treats a missing entry as count=1 on first
// attempt — spec.md §4.2 step 1).
func (db *DB) RetryCount(id string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT count FROM retry_counters WHERE msg_id = ?`, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SetRetryCount creates or updates the counter for id.
func (db *DB) SetRetryCount(id string, count int) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO retry_counters (msg_id, count, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(msg_id) DO UPDATE SET count = excluded.count, updated_at = excluded.updated_at`,
		id, count, now)
	return err
}

// DeleteRetryCount removes the counter for id, called once it reaches the
// cap (spec.md §3: "removed once count >= 5").
func (db *DB) DeleteRetryCount(id string) error {
	_, err := db.Exec(`DELETE FROM retry_counters WHERE msg_id = ?`, id)
	return err
}
