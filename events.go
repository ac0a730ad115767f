package wacore

import "github.com/veltrix/wacore/internal/core"

// Event is one payload delivered to a Client subscriber (see Client.On).
// Kind is one of the Event* constants below; Payload's concrete type
// depends on Kind, documented alongside each constant and each *Upsert /
// *Update struct in this file.
type Event = core.Event

// Event kinds are the stable identifiers carried on Client's event bus
// (spec.md §7's "Emitted events" list). Subscribers filter by dotted-prefix,
// so a subscription to "messages" sees both EventMessagesUpsert and
// EventMessagesUpdate.
const (
	EventMessagesUpsert       = core.EventMessagesUpsert
	EventMessagesUpdate       = core.EventMessagesUpdate
	EventMessagesMediaUpdate  = core.EventMessagesMediaUpdate
	EventMessageReceiptUpdate = core.EventMessageReceiptUpdate
	EventChatsUpsert          = core.EventChatsUpsert
	EventGroupsUpsert         = core.EventGroupsUpsert
	EventContactsUpdate       = core.EventContactsUpdate
	EventCredsUpdate          = core.EventCredsUpdate
	EventCall                 = core.EventCall
)

// UpsertType distinguishes a fresh live message from one backfilled by
// history sync (spec.md §4.5 step 8).
type UpsertType = core.UpsertType

const (
	UpsertNotify = core.UpsertNotify
	UpsertAppend = core.UpsertAppend
)

// MessagesUpsert is the payload of EventMessagesUpsert.
type MessagesUpsert = core.MessagesUpsert

// ChatUpsert is the payload of EventChatsUpsert.
type ChatUpsert = core.ChatUpsert

// GroupMetadata is the payload of EventGroupsUpsert.
type GroupMetadata = core.GroupMetadata

// ContactUpdate is the payload of EventContactsUpdate, queued from a
// message's pushName (spec.md §4.5 post-emit step).
type ContactUpdate = core.ContactUpdate

// MediaUpdate is the payload of EventMessagesMediaUpdate (spec.md §4.3
// "mediaretry" branch).
type MediaUpdate = core.MediaUpdate
