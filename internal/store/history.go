package store

import "time"

// AddHistoryBatch records a history-batch id, returning whether it was new
// (HistoryCache is a set, spec.md §3).
func (db *DB) AddHistoryBatch(batchID string) (inserted bool, err error) {
	res, err := db.Exec(`INSERT OR IGNORE INTO history_cache (batch_id, inserted_at) VALUES (?, ?)`,
		batchID, time.Now().UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearHistoryCache empties the history-batch set. Called when the History
// Sync Gate fires (spec.md §4.8).
func (db *DB) ClearHistoryCache() error {
	_, err := db.Exec(`DELETE FROM history_cache`)
	return err
}

// RecvChats returns the accumulated chat-state deltas gathered since the
// last gate fire.
func (db *DB) RecvChats() (map[string]RecvChatDelta, error) {
	rows, err := db.Query(`SELECT jid, conversation_timestamp, unread_count FROM recv_chats`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]RecvChatDelta)
	for rows.Next() {
		var d RecvChatDelta
		if err := rows.Scan(&d.JID, &d.ConversationTimestamp, &d.UnreadCount); err != nil {
			return nil, err
		}
		out[d.JID] = d
	}
	return out, rows.Err()
}

// UpsertRecvChat merges a chat-state delta observed during bulk history
// ingest, keeping the newest conversation timestamp.
func (db *DB) UpsertRecvChat(d RecvChatDelta) error {
	_, err := db.Exec(`
		INSERT INTO recv_chats (jid, conversation_timestamp, unread_count)
		VALUES (?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			conversation_timestamp = MAX(recv_chats.conversation_timestamp, excluded.conversation_timestamp),
			unread_count = recv_chats.unread_count + excluded.unread_count`,
		d.JID, d.ConversationTimestamp, d.UnreadCount)
	return err
}

// ClearRecvChats drains the accumulator, called alongside ClearHistoryCache
// when the gate fires.
func (db *DB) ClearRecvChats() error {
	_, err := db.Exec(`DELETE FROM recv_chats`)
	return err
}

// RecvChatDelta is the SQLite-backed analog of wacore.ChatStateDelta.
type RecvChatDelta struct {
	JID                   string
	ConversationTimestamp int64
	UnreadCount           int
}
