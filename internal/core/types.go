package core

import "fmt"

// ServerJID is the protocol server's own JID, distinct from any account's
// local identity JID. The Notification Interpreter's "encrypt" branch
// (spec.md §4.3) only reacts to prekey-count notifications that come from
// the server itself.
const ServerJID = "server@s.whatsapp.net"

// MessageKey identifies a single message within a conversation. Participant
// is present iff RemoteJID is a group: it names the device that actually
// sent the message, while RemoteJID names the conversation endpoint.
type MessageKey struct {
	RemoteJID   string
	ID          string
	FromMe      bool
	Participant string
}

// String renders the key in the conventional "remoteJID:id" form, with the
// participant appended for group messages. Useful for log fields and map
// keys that need to be human-readable.
func (k MessageKey) String() string {
	if k.Participant != "" {
		return fmt.Sprintf("%s/%s:%s", k.RemoteJID, k.Participant, k.ID)
	}
	return fmt.Sprintf("%s:%s", k.RemoteJID, k.ID)
}

// MessageStatus is the delivery lifecycle of a WebMessage. Values advance
// monotonically: PENDING -> SERVER_ACK -> DELIVERY_ACK -> READ -> PLAYED.
type MessageStatus int

const (
	StatusPending MessageStatus = iota
	StatusServerAck
	StatusDeliveryAck
	StatusRead
	StatusPlayed
)

func (s MessageStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusServerAck:
		return "SERVER_ACK"
	case StatusDeliveryAck:
		return "DELIVERY_ACK"
	case StatusRead:
		return "READ"
	case StatusPlayed:
		return "PLAYED"
	default:
		return "UNKNOWN"
	}
}

// StubType encodes a system event carried by a WebMessage that has no real
// content payload — a group membership change, a missed call placeholder,
// or an undecryptable ciphertext.
type StubType string

const (
	StubCiphertext              StubType = "CIPHERTEXT"
	StubEphemeralSetting        StubType = "EPHEMERAL_SETTING"
	StubGroupCreate             StubType = "GROUP_CREATE"
	StubGroupParticipantAdd     StubType = "GROUP_PARTICIPANT_ADD"
	StubGroupParticipantRemove  StubType = "GROUP_PARTICIPANT_REMOVE"
	StubGroupParticipantPromote StubType = "GROUP_PARTICIPANT_PROMOTE"
	StubGroupParticipantDemote  StubType = "GROUP_PARTICIPANT_DEMOTE"
	StubGroupParticipantLeave   StubType = "GROUP_PARTICIPANT_LEAVE"
	StubGroupChangeSubject      StubType = "GROUP_CHANGE_SUBJECT"
	StubGroupChangeAnnounce     StubType = "GROUP_CHANGE_ANNOUNCE"
	StubGroupChangeLocked       StubType = "GROUP_CHANGE_LOCKED"
)

// WebMessage is one message as tracked by the pipeline. Message is a
// polymorphic content union; represent concrete payloads as *MessageContent.
type WebMessage struct {
	Key                   MessageKey
	MessageTimestamp      int64
	PushName              string
	Status                MessageStatus
	Message               *MessageContent
	MessageStubType       StubType
	MessageStubParameters []string
}

// ContentKind discriminates the polymorphic MessageContent union.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentMedia
	ContentProtocol
	ContentLocation
	ContentContact
)

// MessageContent is a tagged variant over the wire payload shapes this
// pipeline cares about. Exactly one of the Kind-matching fields is set.
type MessageContent struct {
	Kind ContentKind

	Text string

	Media *MediaContent

	ProtocolType        string // "EPHEMERAL_SETTING", "HISTORY_SYNC_NOTIFICATION", ...
	EphemeralExpiration uint32
	HistorySyncNotif    *HistorySyncNotification

	Location *LocationContent
	Contact  *ContactContent
}

// MediaContent is the outer-message representation of an uploaded media
// payload, as produced by the Outbound Media Prep pipeline (see media
// package) and as received from a peer.
type MediaContent struct {
	MediaType     string // image | video | audio | document | sticker
	URL           string
	MediaKey      []byte
	Mimetype      string
	FileEncSHA256 []byte
	FileSHA256    []byte
	FileLength    int64
	Caption       string
	JPEGThumbnail []byte
	GIFPlayback   bool
	ContextInfo   *ContextInfo
}

// ContextInfo carries a quoted-message reference.
type ContextInfo struct {
	Participant   string
	StanzaID      string
	RemoteJID     string
	QuotedMessage *MessageContent
}

// HistorySyncNotification marks a message as carrying a history-sync batch.
type HistorySyncNotification struct {
	BatchID string
}

// LocationContent is a shared-location payload.
type LocationContent struct {
	Latitude, Longitude float64
	Name, Address       string
}

// ContactContent is a shared-contact-card payload.
type ContactContent struct {
	DisplayName string
	VCard       string
}

// QuotedMessage is the subset of a prior WebMessage needed to build a
// ContextInfo when replying.
type QuotedMessage struct {
	Key     MessageKey
	Message *MessageContent
}

// CallEvent describes the state of a single call offer, keyed by CallID in
// the call-offer cache (see internal/call).
type CallEvent struct {
	CallID    string
	From      string
	Status    string // offer | accept | reject | timeout | terminate
	IsVideo   bool
	GroupJID  string
	Timestamp int64
}
