package wacore

import "github.com/veltrix/wacore/internal/core"

// ServerJID is the protocol server's own JID, distinct from any account's
// local identity JID. The Notification Interpreter's "encrypt" branch
// (spec.md §4.3) only reacts to prekey-count notifications that come from
// the server itself.
const ServerJID = core.ServerJID

// MessageKey identifies a single message within a conversation. Participant
// is present iff RemoteJID is a group: it names the device that actually
// sent the message, while RemoteJID names the conversation endpoint.
type MessageKey = core.MessageKey

// MessageStatus is the delivery lifecycle of a WebMessage. Values advance
// monotonically: PENDING -> SERVER_ACK -> DELIVERY_ACK -> READ -> PLAYED.
type MessageStatus = core.MessageStatus

const (
	StatusPending     = core.StatusPending
	StatusServerAck   = core.StatusServerAck
	StatusDeliveryAck = core.StatusDeliveryAck
	StatusRead        = core.StatusRead
	StatusPlayed      = core.StatusPlayed
)

// StubType encodes a system event carried by a WebMessage that has no real
// content payload — a group membership change, a missed call placeholder,
// or an undecryptable ciphertext.
type StubType = core.StubType

const (
	StubCiphertext              = core.StubCiphertext
	StubEphemeralSetting        = core.StubEphemeralSetting
	StubGroupCreate             = core.StubGroupCreate
	StubGroupParticipantAdd     = core.StubGroupParticipantAdd
	StubGroupParticipantRemove  = core.StubGroupParticipantRemove
	StubGroupParticipantPromote = core.StubGroupParticipantPromote
	StubGroupParticipantDemote  = core.StubGroupParticipantDemote
	StubGroupParticipantLeave   = core.StubGroupParticipantLeave
	StubGroupChangeSubject      = core.StubGroupChangeSubject
	StubGroupChangeAnnounce     = core.StubGroupChangeAnnounce
	StubGroupChangeLocked       = core.StubGroupChangeLocked
)

// WebMessage is one message as tracked by the pipeline. Message is a
// polymorphic content union; represent concrete payloads as *MessageContent.
type WebMessage = core.WebMessage

// ContentKind discriminates the polymorphic MessageContent union.
type ContentKind = core.ContentKind

const (
	ContentText     = core.ContentText
	ContentMedia    = core.ContentMedia
	ContentProtocol = core.ContentProtocol
	ContentLocation = core.ContentLocation
	ContentContact  = core.ContentContact
)

// MessageContent is a tagged variant over the wire payload shapes this
// pipeline cares about. Exactly one of the Kind-matching fields is set.
type MessageContent = core.MessageContent

// MediaContent is the outer-message representation of an uploaded media
// payload, as produced by the Outbound Media Prep pipeline (see media
// package) and as received from a peer.
type MediaContent = core.MediaContent

// ContextInfo carries a quoted-message reference.
type ContextInfo = core.ContextInfo

// HistorySyncNotification marks a message as carrying a history-sync batch.
type HistorySyncNotification = core.HistorySyncNotification

// LocationContent is a shared-location payload.
type LocationContent = core.LocationContent

// ContactContent is a shared-contact-card payload.
type ContactContent = core.ContactContent

// QuotedMessage is the subset of a prior WebMessage needed to build a
// ContextInfo when replying.
type QuotedMessage = core.QuotedMessage

// CallEvent describes the state of a single call offer, keyed by CallID in
// the call-offer cache (see internal/call).
type CallEvent = core.CallEvent
