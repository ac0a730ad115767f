package notify

import (
	"context"
	"testing"

	"github.com/veltrix/wacore/internal/ack"
	"github.com/veltrix/wacore/internal/bus"
	"github.com/veltrix/wacore/internal/core"
	"go.uber.org/zap"
)

type fakeReplenisher struct {
	calls int
}

func (f *fakeReplenisher) UploadPreKeys(context.Context) error {
	f.calls++
	return nil
}

type fakeTransport struct {
	sent []core.Stanza
}

func (f *fakeTransport) SendNode(_ context.Context, s core.Stanza) error {
	f.sent = append(f.sent, s)
	return nil
}

func (f *fakeTransport) IsConnected() bool { return true }

func (f *fakeTransport) RelayMessage(context.Context, string, *core.MessageContent, core.RelayOptions) error {
	return nil
}

func newTestInterpreter(b *bus.Bus, replenisher core.PreKeyReplenisher, localJID string) *Interpreter {
	emitter := ack.New(&fakeTransport{}, zap.NewNop())
	return New(emitter, b, replenisher, localJID, 5, zap.NewNop())
}

func drain(t *testing.T, b *bus.Bus, namespace string) <-chan bus.Event {
	t.Helper()
	ch, unsub := b.Subscribe(namespace, 8)
	t.Cleanup(unsub)
	return ch
}

func TestGroupCreateEmitsChatsGroupsAndStub(t *testing.T) {
	b := bus.New()
	chats := drain(t, b, core.EventChatsUpsert)
	groups := drain(t, b, core.EventGroupsUpsert)
	msgs := drain(t, b, core.EventMessagesUpsert)

	in := newTestInterpreter(b, &fakeReplenisher{}, "me@s.whatsapp.net")

	n := core.Stanza{Tag: "notification", Attrs: map[string]string{"type": "w:gp2", "from": "group@g.us", "id": "N1"},
		Children: []core.Stanza{{Tag: "create", Attrs: map[string]string{
			"subject": "Weekend Trip", "creator": "alice@s.whatsapp.net", "create_time": "1000",
		}, Children: []core.Stanza{
			{Tag: "participant", Attrs: map[string]string{"jid": "alice@s.whatsapp.net"}},
			{Tag: "participant", Attrs: map[string]string{"jid": "bob@s.whatsapp.net"}},
		}}}}

	if err := in.Interpret(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	chatEvt := <-chats
	chat := chatEvt.Payload.(core.ChatUpsert)
	if chat.ID != "group@g.us" || chat.Name != "Weekend Trip" || chat.ConversationTimestamp != 1000 {
		t.Errorf("chat upsert = %+v", chat)
	}

	groupEvt := <-groups
	group := groupEvt.Payload.(core.GroupMetadata)
	if group.Owner != "alice@s.whatsapp.net" || len(group.Participants) != 2 {
		t.Errorf("group metadata = %+v", group)
	}

	msgEvt := <-msgs
	upsert := msgEvt.Payload.(core.MessagesUpsert)
	stub := upsert.Messages[0]
	if stub.MessageStubType != core.StubGroupCreate || stub.MessageStubParameters[0] != "Weekend Trip" {
		t.Errorf("stub = %+v", stub)
	}
	if stub.Key.Participant != "alice@s.whatsapp.net" {
		t.Errorf("stub key.participant = %q, want owner", stub.Key.Participant)
	}
}

func TestParticipantRemoveLeaveTieBreak(t *testing.T) {
	b := bus.New()
	msgs := drain(t, b, core.EventMessagesUpsert)
	in := newTestInterpreter(b, &fakeReplenisher{}, "me@s.whatsapp.net")

	n := core.Stanza{Tag: "notification", Attrs: map[string]string{
		"type": "w:gp2", "from": "group@g.us", "id": "N2", "participant": "bob@s.whatsapp.net",
	}, Children: []core.Stanza{{Tag: "remove", Children: []core.Stanza{
		{Tag: "participant", Attrs: map[string]string{"jid": "bob@s.whatsapp.net"}},
	}}}}

	if err := in.Interpret(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	stub := (<-msgs).Payload.(core.MessagesUpsert).Messages[0]
	if stub.MessageStubType != core.StubGroupParticipantLeave {
		t.Errorf("stub type = %s, want GROUP_PARTICIPANT_LEAVE", stub.MessageStubType)
	}
}

func TestParticipantRemoveMultipleStaysRemove(t *testing.T) {
	b := bus.New()
	msgs := drain(t, b, core.EventMessagesUpsert)
	in := newTestInterpreter(b, &fakeReplenisher{}, "me@s.whatsapp.net")

	n := core.Stanza{Tag: "notification", Attrs: map[string]string{
		"type": "w:gp2", "from": "group@g.us", "id": "N3", "participant": "admin@s.whatsapp.net",
	}, Children: []core.Stanza{{Tag: "remove", Children: []core.Stanza{
		{Tag: "participant", Attrs: map[string]string{"jid": "bob@s.whatsapp.net"}},
		{Tag: "participant", Attrs: map[string]string{"jid": "carol@s.whatsapp.net"}},
	}}}}

	if err := in.Interpret(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	stub := (<-msgs).Payload.(core.MessagesUpsert).Messages[0]
	if stub.MessageStubType != core.StubGroupParticipantRemove {
		t.Errorf("stub type = %s, want GROUP_PARTICIPANT_REMOVE", stub.MessageStubType)
	}
	if len(stub.MessageStubParameters) != 2 {
		t.Errorf("params = %v, want 2 jids", stub.MessageStubParameters)
	}
}

func TestMediaRetryEmitsMediaUpdate(t *testing.T) {
	b := bus.New()
	updates := drain(t, b, core.EventMessagesMediaUpdate)
	in := newTestInterpreter(b, &fakeReplenisher{}, "me@s.whatsapp.net")

	n := core.Stanza{Tag: "notification", Attrs: map[string]string{
		"type": "mediaretry", "from": "bob@s.whatsapp.net", "id": "M1",
	}, Body: []byte("payload")}

	if err := in.Interpret(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	evt := (<-updates).Payload.(core.MediaUpdate)
	if evt.Key.ID != "M1" || string(evt.Data) != "payload" {
		t.Errorf("media update = %+v", evt)
	}
}

func TestEncryptNotificationBelowThresholdTriggersReplenish(t *testing.T) {
	b := bus.New()
	replenisher := &fakeReplenisher{}
	in := newTestInterpreter(b, replenisher, "server@s.whatsapp.net")

	n := core.Stanza{Tag: "notification", Attrs: map[string]string{
		"type": "encrypt", "from": "server@s.whatsapp.net", "id": "E1",
	}, Children: []core.Stanza{{Tag: "count", Attrs: map[string]string{"value": "3"}}}}

	if err := in.Interpret(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	if replenisher.calls != 1 {
		t.Errorf("UploadPreKeys calls = %d, want 1", replenisher.calls)
	}
}

func TestEncryptNotificationAboveThresholdDoesNothing(t *testing.T) {
	b := bus.New()
	replenisher := &fakeReplenisher{}
	in := newTestInterpreter(b, replenisher, "server@s.whatsapp.net")

	n := core.Stanza{Tag: "notification", Attrs: map[string]string{
		"type": "encrypt", "from": "server@s.whatsapp.net", "id": "E2",
	}, Children: []core.Stanza{{Tag: "count", Attrs: map[string]string{"value": "10"}}}}

	if err := in.Interpret(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	if replenisher.calls != 0 {
		t.Errorf("UploadPreKeys calls = %d, want 0", replenisher.calls)
	}
}

func TestEphemeralSettingSynthesizesProtocolMessage(t *testing.T) {
	b := bus.New()
	msgs := drain(t, b, core.EventMessagesUpsert)
	in := newTestInterpreter(b, &fakeReplenisher{}, "me@s.whatsapp.net")

	n := core.Stanza{Tag: "notification", Attrs: map[string]string{"type": "w:gp2", "from": "group@g.us", "id": "N4"},
		Children: []core.Stanza{{Tag: "ephemeral", Attrs: map[string]string{"expiration": "604800"}}}}

	if err := in.Interpret(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	msg := (<-msgs).Payload.(core.MessagesUpsert).Messages[0]
	if msg.Message == nil || msg.Message.ProtocolType != "EPHEMERAL_SETTING" || msg.Message.EphemeralExpiration != 604800 {
		t.Errorf("message = %+v", msg.Message)
	}
}

func TestSubjectChangeStub(t *testing.T) {
	b := bus.New()
	msgs := drain(t, b, core.EventMessagesUpsert)
	in := newTestInterpreter(b, &fakeReplenisher{}, "me@s.whatsapp.net")

	n := core.Stanza{Tag: "notification", Attrs: map[string]string{"type": "w:gp2", "from": "group@g.us", "id": "N5"},
		Children: []core.Stanza{{Tag: "subject", Attrs: map[string]string{"subject": "New Name"}}}}

	if err := in.Interpret(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	stub := (<-msgs).Payload.(core.MessagesUpsert).Messages[0]
	if stub.MessageStubType != core.StubGroupChangeSubject || stub.MessageStubParameters[0] != "New Name" {
		t.Errorf("stub = %+v", stub)
	}
}

func TestAnnouncementAndLockedStubsEncodeOnOff(t *testing.T) {
	b := bus.New()
	msgs := drain(t, b, core.EventMessagesUpsert)
	in := newTestInterpreter(b, &fakeReplenisher{}, "me@s.whatsapp.net")

	n := core.Stanza{Tag: "notification", Attrs: map[string]string{"type": "w:gp2", "from": "group@g.us", "id": "N6"},
		Children: []core.Stanza{{Tag: "locked"}}}
	if err := in.Interpret(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	stub := (<-msgs).Payload.(core.MessagesUpsert).Messages[0]
	if stub.MessageStubType != core.StubGroupChangeLocked || stub.MessageStubParameters[0] != "on" {
		t.Errorf("stub = %+v", stub)
	}
}

func TestInterpretAcksBeforeDispatch(t *testing.T) {
	b := bus.New()
	drain(t, b, core.EventMessagesMediaUpdate)
	tr := &fakeTransport{}
	emitter := ack.New(tr, zap.NewNop())
	in := New(emitter, b, &fakeReplenisher{}, "me@s.whatsapp.net", 5, zap.NewNop())

	n := core.Stanza{Tag: "notification", Attrs: map[string]string{
		"type": "mediaretry", "from": "bob@s.whatsapp.net", "id": "ACK1",
	}, Body: []byte("payload")}

	if err := in.Interpret(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	if len(tr.sent) != 1 {
		t.Fatalf("sent %d stanzas, want 1 ack", len(tr.sent))
	}
	if got := tr.sent[0]; got.Tag != "ack" || got.Attr("id") != "ACK1" {
		t.Errorf("ack = %+v, want ack of ACK1", got)
	}
}

func TestEncryptNotificationFromPeerIgnored(t *testing.T) {
	b := bus.New()
	replenisher := &fakeReplenisher{}
	in := newTestInterpreter(b, replenisher, "server@s.whatsapp.net")

	n := core.Stanza{Tag: "notification", Attrs: map[string]string{
		"type": "encrypt", "from": "bob@s.whatsapp.net", "id": "E3",
	}, Children: []core.Stanza{{Tag: "count", Attrs: map[string]string{"value": "1"}}}}

	if err := in.Interpret(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	if replenisher.calls != 0 {
		t.Errorf("UploadPreKeys should not be called for a peer notification")
	}
}
