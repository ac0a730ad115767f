package store

// CallOfferRow is the persisted shape of a CallEvent (spec.md §3: "Entry
// inserted on offer, enriched on subsequent updates, removed on terminal
// status {reject, accept, timeout}").
type CallOfferRow struct {
	CallID   string
	From     string
	Status   string
	IsVideo  bool
	GroupJID string
	Ts       int64
}

// UpsertCallOffer inserts or enriches a call-offer row.
func (db *DB) UpsertCallOffer(c CallOfferRow) error {
	_, err := db.Exec(`
		INSERT INTO call_offers (call_id, from_jid, status, is_video, group_jid, ts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(call_id) DO UPDATE SET
			status = excluded.status,
			is_video = excluded.is_video,
			group_jid = excluded.group_jid,
			ts = excluded.ts`,
		c.CallID, c.From, c.Status, boolToInt(c.IsVideo), c.GroupJID, c.Ts)
	return err
}

// GetCallOffer returns the current row for callID, or ok=false.
func (db *DB) GetCallOffer(callID string) (CallOfferRow, bool, error) {
	var c CallOfferRow
	var isVideo int
	err := db.QueryRow(`SELECT call_id, from_jid, status, is_video, group_jid, ts FROM call_offers WHERE call_id = ?`,
		callID).Scan(&c.CallID, &c.From, &c.Status, &isVideo, &c.GroupJID, &c.Ts)
	if err != nil {
		return CallOfferRow{}, false, nil //nolint:nilerr
	}
	c.IsVideo = isVideo != 0
	return c, true, nil
}

// DeleteCallOffer removes a row on terminal status.
func (db *DB) DeleteCallOffer(callID string) error {
	_, err := db.Exec(`DELETE FROM call_offers WHERE call_id = ?`, callID)
	return err
}
