// Package retry implements the Retry Requester: the component that asks a
// peer to resend a message whose decryption failed, consuming exactly one
// fresh prekey per request.
package retry

import (
	"context"
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/veltrix/wacore/internal/bus"
	"github.com/veltrix/wacore/internal/core"
	"github.com/veltrix/wacore/internal/store"
	"go.uber.org/zap"
)

const retryCap = 5

// keyBundleType is the fixed prefix byte attached to a keys bundle, mirroring
// the Signal prekey-bundle wire convention.
const keyBundleType = 0x05

// Requester sends retry receipts for inbound messages that failed to
// decrypt, and tracks each message's retry counter in store.DB so it
// survives a restart (spec.md §3).
type Requester struct {
	transport core.Transport
	keys      core.KeyStore
	counters  *store.DB
	bus       *bus.Bus
	logger    *zap.Logger

	// DeviceEncode rewrites a bare JID into its device-qualified form for
	// 1:1 retry addressing. Defaults to identity — JID encoding is out of
	// scope (spec.md Non-goals); callers that need the real device suffix
	// inject it here.
	DeviceEncode func(jid string) string
}

// New creates a Requester.
func New(transport core.Transport, keys core.KeyStore, counters *store.DB, b *bus.Bus, logger *zap.Logger) *Requester {
	return &Requester{
		transport:    transport,
		keys:         keys,
		counters:     counters,
		bus:          b,
		logger:       logger,
		DeviceEncode: func(jid string) string { return jid },
	}
}

// CredsUpdate is the payload of the creds.update event emitted when a
// prekey is consumed.
type CredsUpdate struct {
	ConsumedPreKeyID uint32
}

// Request handles one failed inbound stanza, following spec.md §4.2.
func (r *Requester) Request(ctx context.Context, in core.Stanza) error {
	id := in.Attr("id")
	from := in.Attr("from")

	count, err := r.counters.RetryCount(id)
	if err != nil {
		return err
	}
	if count == 0 {
		count = 1
	}
	if count >= retryCap {
		return r.counters.DeleteRetryCount(id)
	}

	// Prekey consumption is the scarce resource; the counter is bumped
	// before the transaction opens and is not rolled back if it fails, so
	// the next attempt uses a higher count (spec.md §4.2 Failure note).
	if err := r.counters.SetRetryCount(id, count+1); err != nil {
		return err
	}

	tx, err := r.keys.BeginTx(ctx)
	if err != nil {
		return err
	}

	preKeyID, preKeyPub, err := tx.GenOnePreKey(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	to := from
	if !isGroupJID(from) {
		to = r.DeviceEncode(sender(in))
	}

	attrs := map[string]string{
		"id":   id,
		"to":   to,
		"type": "retry",
	}
	if v := in.Attr("recipient"); v != "" {
		attrs["recipient"] = v
	}
	if v := in.Attr("participant"); v != "" {
		attrs["participant"] = v
	}

	registration := make([]byte, 4)
	binary.BigEndian.PutUint32(registration, r.keys.RegistrationID())

	retryChild := core.Stanza{
		Tag: "retry",
		Attrs: map[string]string{
			"count": strconv.Itoa(count),
			"id":    id,
			"t":     strconv.FormatInt(time.Now().Unix(), 10),
			"v":     "1",
		},
	}
	registrationChild := core.Stanza{Tag: "registration", Body: registration}

	children := []core.Stanza{retryChild, registrationChild}

	if count > 1 {
		signedPreKeyID, signedPreKeyPub, signedPreKeySig := r.keys.SignedPreKey()
		children = append(children, core.Stanza{
			Tag: "keys",
			Children: []core.Stanza{
				{Tag: "type", Body: []byte{keyBundleType}},
				{Tag: "identity", Body: r.keys.IdentityPublicKey()},
				{Tag: "key", Attrs: map[string]string{"id": strconv.FormatUint(uint64(preKeyID), 10)}, Body: preKeyPub},
				{Tag: "signed-key", Attrs: map[string]string{"id": strconv.FormatUint(uint64(signedPreKeyID), 10)}, Body: signedPreKeyPub},
				{Tag: "signature", Body: signedPreKeySig},
				{Tag: "device-identity", Body: r.keys.DeviceIdentity()},
			},
		})
	}

	receipt := core.Stanza{Tag: "receipt", Attrs: attrs, Children: children}

	if err := r.transport.SendNode(ctx, receipt); err != nil {
		return err
	}

	r.bus.Publish(bus.Event{Kind: "creds.update", Timestamp: time.Now(), Payload: CredsUpdate{ConsumedPreKeyID: preKeyID}})
	return nil
}

func sender(in core.Stanza) string {
	if p := in.Attr("participant"); p != "" {
		return p
	}
	return in.Attr("from")
}

func isGroupJID(jid string) bool {
	return strings.HasSuffix(jid, "@g.us")
}
