// Package notify implements the Notification Interpreter: it turns a
// server-pushed "notification" stanza into the bus events (and, for prekey
// replenishment, external calls) that the rest of the pipeline reacts to.
package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/veltrix/wacore/internal/ack"
	"github.com/veltrix/wacore/internal/bus"
	"github.com/veltrix/wacore/internal/core"
	"go.uber.org/zap"
)

// Interpreter dispatches inbound notification stanzas by attrs.type.
type Interpreter struct {
	ack        *ack.Emitter
	bus        *bus.Bus
	keys       core.PreKeyReplenisher
	logger     *zap.Logger
	localJID   string
	minPreKeys int
}

// New creates an Interpreter. minPreKeys is the Config surface's
// MinPreKeyCount (spec.md §4.3 "encrypt" branch).
func New(ackEmitter *ack.Emitter, b *bus.Bus, keys core.PreKeyReplenisher, localJID string, minPreKeys int, logger *zap.Logger) *Interpreter {
	return &Interpreter{ack: ackEmitter, bus: b, keys: keys, localJID: localJID, minPreKeys: minPreKeys, logger: logger}
}

// Interpret dispatches one notification stanza. Every notification is
// acked before dispatch (spec.md §4.3: "all notifications are always
// acked before interpretation dispatch"), so a processing error never
// blocks the protocol-level ack.
func (in *Interpreter) Interpret(ctx context.Context, n core.Stanza) error {
	if err := in.ack.Ack(ctx, n, ack.Override{}); err != nil {
		in.logger.Debug("notification ack send failed", zap.Error(err))
	}

	switch n.Attr("type") {
	case "w:gp2":
		return in.groupLifecycle(n)
	case "mediaretry":
		return in.mediaRetry(n)
	case "encrypt":
		return in.encrypt(ctx, n)
	case "devices":
		in.devices(n)
		return nil
	default:
		in.logger.Debug("unhandled notification type", zap.String("type", n.Attr("type")))
		return nil
	}
}

func (in *Interpreter) groupLifecycle(n core.Stanza) error {
	if len(n.Children) == 0 {
		return nil
	}
	child := n.Children[0]

	switch child.Tag {
	case "create":
		return in.groupCreate(n, child)
	case "ephemeral", "not_ephemeral":
		in.ephemeralSetting(n, child)
	case "promote", "demote", "remove", "add", "leave":
		in.participantChange(n, child)
	case "subject":
		in.stubChange(n, core.StubGroupChangeSubject, []string{child.Attr("subject")})
	case "announcement", "not_announcement":
		in.stubChange(n, core.StubGroupChangeAnnounce, []string{onOff(child.Tag == "announcement")})
	case "locked", "unlocked":
		in.stubChange(n, core.StubGroupChangeLocked, []string{onOff(child.Tag == "locked")})
	}
	return nil
}

func (in *Interpreter) groupCreate(n, create core.Stanza) error {
	groupID := n.Attr("from")
	subject := create.Attr("subject")
	owner := create.Attr("creator")
	creation := parseInt64(create.Attr("create_time"))

	var participants []string
	for _, c := range create.Children {
		if c.Tag == "participant" {
			participants = append(participants, c.Attr("jid"))
		}
	}

	in.bus.Publish(bus.Event{Kind: core.EventChatsUpsert, Timestamp: time.Now(), Payload: core.ChatUpsert{
		ID:                    groupID,
		Name:                  subject,
		ConversationTimestamp: creation,
	}})

	in.bus.Publish(bus.Event{Kind: core.EventGroupsUpsert, Timestamp: time.Now(), Payload: core.GroupMetadata{
		ID:           groupID,
		Subject:      subject,
		Owner:        owner,
		Creation:     creation,
		Participants: participants,
	}})

	in.emitStub(n, core.StubGroupCreate, []string{subject}, owner)
	return nil
}

func (in *Interpreter) ephemeralSetting(n, child core.Stanza) {
	expiration := uint32(parseInt64(child.Attr("expiration")))
	msg := &core.WebMessage{
		Key:              core.MessageKey{RemoteJID: n.Attr("from"), ID: n.Attr("id")},
		MessageTimestamp: time.Now().Unix(),
		Message: &core.MessageContent{
			Kind:                core.ContentProtocol,
			ProtocolType:        "EPHEMERAL_SETTING",
			EphemeralExpiration: expiration,
		},
	}
	in.bus.Publish(bus.Event{Kind: core.EventMessagesUpsert, Timestamp: time.Now(), Payload: core.MessagesUpsert{
		Type:     core.UpsertNotify,
		Messages: []*core.WebMessage{msg},
	}})
}

func (in *Interpreter) participantChange(n, child core.Stanza) {
	var participants []string
	for _, c := range child.Children {
		if c.Tag == "participant" {
			participants = append(participants, c.Attr("jid"))
		}
	}

	stubType := tagToStub(child.Tag)

	// Tie-break: a lone remove target that matches the notification's own
	// participant attribute is really the participant leaving on their own.
	if child.Tag == "remove" && len(participants) == 1 && participants[0] == n.Attr("participant") {
		stubType = core.StubGroupParticipantLeave
	}

	in.emitStub(n, stubType, participants, n.Attr("participant"))
}

func (in *Interpreter) stubChange(n core.Stanza, stubType core.StubType, params []string) {
	in.emitStub(n, stubType, params, n.Attr("participant"))
}

func (in *Interpreter) emitStub(n core.Stanza, stubType core.StubType, params []string, participant string) {
	msg := &core.WebMessage{
		Key: core.MessageKey{
			RemoteJID:   n.Attr("from"),
			ID:          n.Attr("id"),
			Participant: participant,
		},
		MessageTimestamp:      time.Now().Unix(),
		MessageStubType:       stubType,
		MessageStubParameters: params,
	}
	in.bus.Publish(bus.Event{Kind: core.EventMessagesUpsert, Timestamp: time.Now(), Payload: core.MessagesUpsert{
		Type:     core.UpsertNotify,
		Messages: []*core.WebMessage{msg},
	}})
}

func (in *Interpreter) mediaRetry(n core.Stanza) error {
	key := core.MessageKey{RemoteJID: n.Attr("from"), ID: n.Attr("id"), Participant: n.Attr("participant")}
	in.bus.Publish(bus.Event{Kind: core.EventMessagesMediaUpdate, Timestamp: time.Now(), Payload: core.MediaUpdate{
		Key:  key,
		Data: n.Body,
	}})
	return nil
}

func (in *Interpreter) encrypt(ctx context.Context, n core.Stanza) error {
	if n.Attr("from") != core.ServerJID {
		in.logger.Debug("encrypt notification not from server, ignoring", zap.String("from", n.Attr("from")))
		return nil
	}

	count, ok := n.Child("count")
	if !ok {
		in.logger.Debug("unknown encrypt notification variant")
		return nil
	}

	n2 := int(parseInt64(count.Attr("value")))
	if n2 < in.minPreKeys {
		return in.keys.UploadPreKeys(ctx)
	}
	return nil
}

func (in *Interpreter) devices(n core.Stanza) {
	child, ok := n.Child("device-list")
	if !ok {
		return
	}
	if child.Attr("jid") != in.localJID {
		return
	}
	in.logger.Info("device list received", zap.String("jid", child.Attr("jid")))
}

func tagToStub(tag string) core.StubType {
	switch tag {
	case "promote":
		return core.StubGroupParticipantPromote
	case "demote":
		return core.StubGroupParticipantDemote
	case "remove":
		return core.StubGroupParticipantRemove
	case "add":
		return core.StubGroupParticipantAdd
	case "leave":
		return core.StubGroupParticipantLeave
	default:
		return ""
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
