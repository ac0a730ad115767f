package wacore

import "github.com/veltrix/wacore/internal/core"

// Stanza is one decoded protocol frame as delivered by the transport. Attrs
// holds the node's string attributes; Content is either nested Stanzas or a
// raw byte body, mirroring the binary-XML shape the transport already
// parsed — decoding that wire format is explicitly out of scope here (see
// spec.md §1).
type Stanza = core.Stanza

// Transport is the subset of the websocket multiplexer the pipeline needs.
// The real implementation (noise handshake, frame reassembly, keepalive) is
// an external collaborator; this is the seam.
type Transport = core.Transport

// RelayOptions carries the addressing refinements RelayMessage needs beyond
// the destination JID.
type RelayOptions = core.RelayOptions

// ReceiptType enumerates the values sendReceipt's type parameter may take.
// The empty string denotes "delivered" (no explicit type attribute).
type ReceiptType = core.ReceiptType

const (
	ReceiptDelivered = core.ReceiptDelivered
	ReceiptRead      = core.ReceiptRead
	ReceiptReadSelf  = core.ReceiptReadSelf
	ReceiptHistSync  = core.ReceiptHistSync
	ReceiptPeerMsg   = core.ReceiptPeerMsg
	ReceiptSender    = core.ReceiptSender
	ReceiptInactive  = core.ReceiptInactive
)

// ReceiptSender issues a semantic delivery/read receipt for one or more
// message ids (§6 sendReceipt).
type ReceiptSender = core.ReceiptSender

// PreKeyBundle is the material attached to a retry receipt once
// retryCount > 1 (§4.2 step 6).
type PreKeyBundle = core.PreKeyBundle

// KeyStoreTx is the handle to a single transactional key-store update,
// guaranteeing the core never consumes a prekey outside a transaction
// (§5 Shared resources).
type KeyStoreTx = core.KeyStoreTx

// KeyStore is the external Signal-protocol session store and identity
// material. Everything here is out of scope to implement (spec.md §1); the
// pipeline only ever touches it through this seam.
type KeyStore = core.KeyStore

// MessageStore looks up previously-sent outbound messages so a
// receipt-triggered resend has source material (§6 getMessage).
type MessageStore = core.MessageStore

// UploadSlot is what the media HTTP upload negotiation returns (§4.6 step
// 5).
type UploadSlot = core.UploadSlot

// MediaUploadNegotiator requests an upload slot ahead of the actual HTTP
// POST. The POST itself is performed by the media package directly over
// net/http since its shape (fixed query params, fixed Origin header) is
// fully specified by spec.md §4.6 and isn't a pluggable concern.
type MediaUploadNegotiator = core.MediaUploadNegotiator

// PreKeyReplenisher tops up the server's prekey pool (§6 uploadPreKeys).
type PreKeyReplenisher = core.PreKeyReplenisher

// AppStateResyncer pulls bulk chat metadata after the history-sync gate
// fires (§6 resyncMainAppState).
type AppStateResyncer = core.AppStateResyncer

// ChatStateDelta is one accumulated chat-state observation gathered during
// bulk history ingest (§3 RecvChats).
type ChatStateDelta = core.ChatStateDelta

// ThumbnailGenerator produces a small JPEG preview for outbound media. A
// nil generator is valid; Outbound Media Prep then omits the thumbnail.
type ThumbnailGenerator = core.ThumbnailGenerator
