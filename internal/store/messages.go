package store

import (
	"encoding/json"
	"time"
)

// SaveOutboundMessage records message content keyed by the same tuple as
// MessageKey, so a later receipt-triggered resend (spec.md §4.4 step 3,
// "fetch each message by (key, id) from the external store") can recover
// it. Content is opaque to the database; callers serialize it.
func (db *DB) SaveOutboundMessage(remoteJID, id string, fromMe bool, participant string, content []byte) error {
	_, err := db.Exec(`
		INSERT INTO outbound_messages (remote_jid, msg_id, from_me, participant, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(remote_jid, msg_id, from_me, participant) DO UPDATE SET content = excluded.content`,
		remoteJID, id, boolToInt(fromMe), participant, content, time.Now().UnixMilli())
	return err
}

// GetOutboundMessage looks up previously-saved content. ok is false if no
// row matches.
func (db *DB) GetOutboundMessage(remoteJID, id string, fromMe bool, participant string) (content []byte, ok bool, err error) {
	err = db.QueryRow(`
		SELECT content FROM outbound_messages
		WHERE remote_jid = ? AND msg_id = ? AND from_me = ? AND participant = ?`,
		remoteJID, id, boolToInt(fromMe), participant).Scan(&content)
	if err != nil {
		return nil, false, nil //nolint:nilerr // sql.ErrNoRows means "not found"
	}
	return content, true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// EncodeJSON is a small helper so callers don't need to import
// encoding/json just to satisfy SaveOutboundMessage's []byte parameter.
func EncodeJSON(v any) ([]byte, error) { return json.Marshal(v) }

// DecodeJSON is the inverse of EncodeJSON.
func DecodeJSON(data []byte, v any) error { return json.Unmarshal(data, v) }
