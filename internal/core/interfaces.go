package core

import "context"

// Stanza is one decoded protocol frame as delivered by the transport. Attrs
// holds the node's string attributes; Content is either nested Stanzas or a
// raw byte body, mirroring the binary-XML shape the transport already
// parsed — decoding that wire format is explicitly out of scope here (see
// spec.md §1).
type Stanza struct {
	Tag      string
	Attrs    map[string]string
	Children []Stanza
	Body     []byte
}

// Attr is a small helper for reading an optional attribute.
func (s Stanza) Attr(name string) string { return s.Attrs[name] }

// Child returns the first child with the given tag, or ok=false.
func (s Stanza) Child(tag string) (Stanza, bool) {
	for _, c := range s.Children {
		if c.Tag == tag {
			return c, true
		}
	}
	return Stanza{}, false
}

// Transport is the subset of the websocket multiplexer the pipeline needs.
// The real implementation (noise handshake, frame reassembly, keepalive) is
// an external collaborator; this is the seam.
type Transport interface {
	// SendNode performs a fire-and-forget stanza write. Implementations
	// must return ErrTransportClosed (or a wrapped instance) rather than
	// blocking when the socket isn't open — §7 TransportClosed.
	SendNode(ctx context.Context, stanza Stanza) error

	// IsConnected reports whether the socket is currently open, used by
	// the retry and history-sync gates to skip writes after close (§5).
	IsConnected() bool

	// RelayMessage performs an encrypted send of pre-built message
	// content, used both for the public outbound API and for
	// receipt-triggered resends (§4.4 step 3).
	RelayMessage(ctx context.Context, jid string, content *MessageContent, opts RelayOptions) error
}

// RelayOptions carries the addressing refinements RelayMessage needs beyond
// the destination JID.
type RelayOptions struct {
	MessageID   string
	Participant string
}

// ReceiptType enumerates the values sendReceipt's type parameter may take.
// The empty string denotes "delivered" (no explicit type attribute).
type ReceiptType string

const (
	ReceiptDelivered ReceiptType = ""
	ReceiptRead      ReceiptType = "read"
	ReceiptReadSelf  ReceiptType = "read-self"
	ReceiptHistSync  ReceiptType = "hist_sync"
	ReceiptPeerMsg   ReceiptType = "peer_msg"
	ReceiptSender    ReceiptType = "sender"
	ReceiptInactive  ReceiptType = "inactive"
)

// ReceiptSender issues a semantic delivery/read receipt for one or more
// message ids (§6 sendReceipt).
type ReceiptSender interface {
	SendReceipt(ctx context.Context, jid, participant string, ids []string, typ ReceiptType) error
}

// PreKeyBundle is the material attached to a retry receipt once
// retryCount > 1 (§4.2 step 6).
type PreKeyBundle struct {
	KeyBundleType   byte
	IdentityKey     []byte
	PreKeyID        uint32
	PreKeyPub       []byte
	SignedPreKeyID  uint32
	SignedPreKeyPub []byte
	SignedPreKeySig []byte
	DeviceIdentity  []byte
}

// KeyStoreTx is the handle to a single transactional key-store update,
// guaranteeing the core never consumes a prekey outside a transaction
// (§5 Shared resources).
type KeyStoreTx interface {
	// GenOnePreKey allocates exactly one fresh one-time prekey and returns
	// its index plus public key.
	GenOnePreKey(ctx context.Context) (id uint32, pub []byte, err error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// KeyStore is the external Signal-protocol session store and identity
// material. Everything here is out of scope to implement (spec.md §1); the
// pipeline only ever touches it through this seam.
type KeyStore interface {
	// BeginTx opens a transactional key-store update (§4.2 step 2).
	BeginTx(ctx context.Context) (KeyStoreTx, error)

	IdentityPublicKey() []byte
	SignedPreKey() (id uint32, pub []byte, sig []byte)
	DeviceIdentity() []byte
	RegistrationID() uint32
	LocalJID() string

	// AssertSessions guarantees a live Signal session exists with each
	// jid, forcing a fresh handshake if force is true (§4.4 step 3).
	AssertSessions(ctx context.Context, jids []string, force bool) error

	// InvalidateSenderKey drops the cached sender-key fan-out state for a
	// group+participant so the next send re-distributes keys (§4.4
	// step 3, "invalidate the sender-key memory entry").
	InvalidateSenderKey(ctx context.Context, groupJID, participant string) error
}

// MessageStore looks up previously-sent outbound messages so a
// receipt-triggered resend has source material (§6 getMessage).
type MessageStore interface {
	GetMessage(ctx context.Context, key MessageKey) (*MessageContent, bool, error)
}

// UploadSlot is what the media HTTP upload negotiation returns (§4.6 step
// 5).
type UploadSlot struct {
	Auth  string
	Hosts []string
}

// MediaUploadNegotiator requests an upload slot ahead of the actual HTTP
// POST. The POST itself is performed by the media package directly over
// net/http since its shape (fixed query params, fixed Origin header) is
// fully specified by spec.md §4.6 and isn't a pluggable concern.
type MediaUploadNegotiator interface {
	RequestUploadSlot(ctx context.Context, mediaType string) (UploadSlot, error)
}

// PreKeyReplenisher tops up the server's prekey pool (§6 uploadPreKeys).
type PreKeyReplenisher interface {
	UploadPreKeys(ctx context.Context) error
}

// AppStateResyncer pulls bulk chat metadata after the history-sync gate
// fires (§6 resyncMainAppState).
type AppStateResyncer interface {
	ResyncMainAppState(ctx context.Context, recvChats map[string]ChatStateDelta) error
}

// ChatStateDelta is one accumulated chat-state observation gathered during
// bulk history ingest (§3 RecvChats).
type ChatStateDelta struct {
	JID                   string
	ConversationTimestamp int64
	UnreadCount           int
}

// ThumbnailGenerator produces a small JPEG preview for outbound media. A
// nil generator is valid; Outbound Media Prep then omits the thumbnail.
type ThumbnailGenerator interface {
	Thumbnail(ctx context.Context, buf []byte, mediaType string) ([]byte, error)
}
