package core

import "time"

// Event is one payload delivered to a Client subscriber (see Client.On).
// Kind is one of the Event* constants below; Payload's concrete type
// depends on Kind, documented alongside each constant and each *Upsert /
// *Update struct in this file.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds are the stable identifiers carried on Client's event bus
// (spec.md §7's "Emitted events" list). Subscribers filter by dotted-prefix,
// so a subscription to "messages" sees both EventMessagesUpsert and
// EventMessagesUpdate.
const (
	EventMessagesUpsert       = "messages.upsert"
	EventMessagesUpdate       = "messages.update"
	EventMessagesMediaUpdate  = "messages.media-update"
	EventMessageReceiptUpdate = "message-receipt.update"
	EventChatsUpsert          = "chats.upsert"
	EventGroupsUpsert         = "groups.upsert"
	EventContactsUpdate       = "contacts.update"
	EventCredsUpdate          = "creds.update"
	EventCall                 = "call"
)

// UpsertType distinguishes a fresh live message from one backfilled by
// history sync (spec.md §4.5 step 8).
type UpsertType string

const (
	UpsertNotify UpsertType = "notify"
	UpsertAppend UpsertType = "append"
)

// MessagesUpsert is the payload of EventMessagesUpsert.
type MessagesUpsert struct {
	Type     UpsertType
	Messages []*WebMessage
}

// ChatUpsert is the payload of EventChatsUpsert.
type ChatUpsert struct {
	ID                    string
	Name                  string
	ConversationTimestamp int64
}

// GroupMetadata is the payload of EventGroupsUpsert.
type GroupMetadata struct {
	ID           string
	Subject      string
	Owner        string
	Creation     int64
	Participants []string
}

// ContactUpdate is the payload of EventContactsUpdate, queued from a
// message's pushName (spec.md §4.5 post-emit step).
type ContactUpdate struct {
	JID  string
	Name string
}

// MediaUpdate is the payload of EventMessagesMediaUpdate (spec.md §4.3
// "mediaretry" branch).
type MediaUpdate struct {
	Key  MessageKey
	Data []byte
}
