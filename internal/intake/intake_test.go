package intake

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/veltrix/wacore/internal/ack"
	"github.com/veltrix/wacore/internal/bus"
	"github.com/veltrix/wacore/internal/core"
	"github.com/veltrix/wacore/internal/lock"
	"github.com/veltrix/wacore/internal/retry"
	"github.com/veltrix/wacore/internal/status"
	"github.com/veltrix/wacore/internal/store"
	"go.uber.org/zap"
)

type fakeTransport struct {
	sent      []core.Stanza
	connected bool
}

func (f *fakeTransport) SendNode(_ context.Context, s core.Stanza) error {
	f.sent = append(f.sent, s)
	return nil
}
func (f *fakeTransport) IsConnected() bool { return f.connected }
func (f *fakeTransport) RelayMessage(context.Context, string, *core.MessageContent, core.RelayOptions) error {
	return nil
}

type fakeKeyStore struct{}

func (k *fakeKeyStore) BeginTx(context.Context) (core.KeyStoreTx, error) {
	return fakeTx{}, nil
}
func (k *fakeKeyStore) IdentityPublicKey() []byte                                 { return nil }
func (k *fakeKeyStore) SignedPreKey() (uint32, []byte, []byte)                    { return 0, nil, nil }
func (k *fakeKeyStore) DeviceIdentity() []byte                                    { return nil }
func (k *fakeKeyStore) RegistrationID() uint32                                    { return 0 }
func (k *fakeKeyStore) LocalJID() string                                          { return "me@s.whatsapp.net" }
func (k *fakeKeyStore) AssertSessions(context.Context, []string, bool) error      { return nil }
func (k *fakeKeyStore) InvalidateSenderKey(context.Context, string, string) error { return nil }

type fakeTx struct{}

func (fakeTx) GenOnePreKey(context.Context) (uint32, []byte, error) { return 1, []byte("k"), nil }
func (fakeTx) Commit(context.Context) error                         { return nil }
func (fakeTx) Rollback(context.Context) error                       { return nil }

type fakeReceiptSender struct {
	sent []receiptCall
	err  error
}

type receiptCall struct {
	jid, participant string
	ids              []string
	typ              core.ReceiptType
}

func (f *fakeReceiptSender) SendReceipt(_ context.Context, jid, participant string, ids []string, typ core.ReceiptType) error {
	f.sent = append(f.sent, receiptCall{jid, participant, ids, typ})
	return f.err
}

func newTestIntake(t *testing.T, tr *fakeTransport, rs *fakeReceiptSender, cfg Config) (*Intake, *bus.Bus, chan errPair) {
	it, b, _, errs := newTestIntakeWithTracker(t, tr, rs, cfg)
	return it, b, errs
}

func newTestIntakeWithTracker(t *testing.T, tr *fakeTransport, rs *fakeReceiptSender, cfg Config) (*Intake, *bus.Bus, *status.Tracker, chan errPair) {
	t.Helper()
	b := bus.New()
	emitter := ack.New(tr, zap.NewNop())
	db, err := store.Open(filepath.Join(t.TempDir(), "core.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	reqr := retry.New(tr, &fakeKeyStore{}, db, b, zap.NewNop())
	retryMu := lock.NewRetryMutex()
	tracker := status.NewTracker()

	errs := make(chan errPair, 8)
	sink := func(err error, context string) { errs <- errPair{err, context} }

	it := New(emitter, reqr, retryMu, rs, tr, b, tracker, "me@s.whatsapp.net", sink, cfg, zap.NewNop())
	return it, b, tracker, errs
}

type errPair struct {
	err     error
	context string
}

func newMessage(id, remoteJID string, fromMe bool) *core.WebMessage {
	return &core.WebMessage{
		Key: core.MessageKey{ID: id, RemoteJID: remoteJID, FromMe: fromMe},
		Message: &core.MessageContent{
			Kind: core.ContentText,
			Text: "hello",
		},
	}
}

func TestProcessDecryptedPeerMessageSendsPeerReceipt(t *testing.T) {
	tr := &fakeTransport{connected: true}
	rs := &fakeReceiptSender{}
	it, b, _ := newTestIntake(t, tr, rs, Config{})

	ch, unsub := b.Subscribe(core.EventMessagesUpsert, 4)
	defer unsub()

	in := InboundMessage{
		Stanza:   core.Stanza{Tag: "message", Attrs: map[string]string{"id": "M1", "from": "bob@s.whatsapp.net"}},
		Message:  newMessage("M1", "bob@s.whatsapp.net", false),
		Category: "peer",
	}
	if err := it.Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	if len(rs.sent) != 1 || rs.sent[0].typ != core.ReceiptPeerMsg {
		t.Fatalf("receipt calls = %+v, want one peer_msg receipt", rs.sent)
	}

	select {
	case evt := <-ch:
		upsert := evt.Payload.(core.MessagesUpsert)
		if upsert.Type != core.UpsertNotify {
			t.Errorf("upsert type = %v, want notify", upsert.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected messages.upsert event")
	}
}

func TestProcessFromMeOneToOneAddressesReceiptToAuthor(t *testing.T) {
	tr := &fakeTransport{connected: true}
	rs := &fakeReceiptSender{}
	it, _, _ := newTestIntake(t, tr, rs, Config{})

	in := InboundMessage{
		Stanza:  core.Stanza{Tag: "message", Attrs: map[string]string{"id": "M1", "from": "bob@s.whatsapp.net"}},
		Message: newMessage("M1", "bob@s.whatsapp.net", true),
		Author:  "myphone@s.whatsapp.net",
	}
	if err := it.Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	if len(rs.sent) != 1 {
		t.Fatalf("receipt calls = %d, want 1", len(rs.sent))
	}
	if rs.sent[0].typ != core.ReceiptSender || rs.sent[0].participant != "myphone@s.whatsapp.net" {
		t.Errorf("receipt = %+v, want sender receipt addressed to author", rs.sent[0])
	}
}

func TestProcessFromMeGroupKeepsStanzaParticipant(t *testing.T) {
	tr := &fakeTransport{connected: true}
	rs := &fakeReceiptSender{}
	it, _, _ := newTestIntake(t, tr, rs, Config{})

	in := InboundMessage{
		Stanza: core.Stanza{Tag: "message", Attrs: map[string]string{
			"id": "M1", "from": "group@g.us", "participant": "me@s.whatsapp.net",
		}},
		Message: newMessage("M1", "group@g.us", true),
		Author:  "myphone@s.whatsapp.net",
	}
	if err := it.Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	if rs.sent[0].participant != "me@s.whatsapp.net" {
		t.Errorf("participant = %q, want stanza participant preserved for group", rs.sent[0].participant)
	}
}

func TestProcessInactiveReceiptWhenActiveReceiptsDisabled(t *testing.T) {
	tr := &fakeTransport{connected: true}
	rs := &fakeReceiptSender{}
	it, _, _ := newTestIntake(t, tr, rs, Config{SendActiveReceipts: false})

	in := InboundMessage{
		Stanza:  core.Stanza{Tag: "message", Attrs: map[string]string{"id": "M1", "from": "bob@s.whatsapp.net"}},
		Message: newMessage("M1", "bob@s.whatsapp.net", false),
	}
	if err := it.Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	if rs.sent[0].typ != core.ReceiptInactive {
		t.Errorf("receipt type = %v, want inactive", rs.sent[0].typ)
	}
}

func TestProcessActiveReceiptWhenEnabled(t *testing.T) {
	tr := &fakeTransport{connected: true}
	rs := &fakeReceiptSender{}
	it, _, _ := newTestIntake(t, tr, rs, Config{SendActiveReceipts: true})

	in := InboundMessage{
		Stanza:  core.Stanza{Tag: "message", Attrs: map[string]string{"id": "M1", "from": "bob@s.whatsapp.net"}},
		Message: newMessage("M1", "bob@s.whatsapp.net", false),
	}
	if err := it.Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	if rs.sent[0].typ != core.ReceiptDelivered {
		t.Errorf("receipt type = %v, want delivered", rs.sent[0].typ)
	}
}

func TestProcessDecryptedMessageGetsServerAckStatus(t *testing.T) {
	tr := &fakeTransport{connected: true}
	rs := &fakeReceiptSender{}
	it, b, tracker, _ := newTestIntakeWithTracker(t, tr, rs, Config{})

	ch, unsub := b.Subscribe(core.EventMessagesUpsert, 4)
	defer unsub()

	msg := newMessage("M1", "bob@s.whatsapp.net", false)
	in := InboundMessage{
		Stanza:  core.Stanza{Tag: "message", Attrs: map[string]string{"id": "M1", "from": "bob@s.whatsapp.net"}},
		Message: msg,
	}
	if err := it.Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	if msg.Status != core.StatusServerAck {
		t.Errorf("Message.Status = %s, want SERVER_ACK", msg.Status)
	}
	if got := tracker.Current(msg.Key.String()); got != status.ServerAck {
		t.Errorf("tracker state = %s, want SERVER_ACK", got)
	}

	evt := <-ch
	upsert := evt.Payload.(core.MessagesUpsert)
	if upsert.Messages[0].Status != core.StatusServerAck {
		t.Errorf("emitted message status = %s, want SERVER_ACK", upsert.Messages[0].Status)
	}
}

func TestProcessCiphertextDoesNotAdvanceStatus(t *testing.T) {
	tr := &fakeTransport{connected: true}
	rs := &fakeReceiptSender{}
	it, _, tracker, _ := newTestIntakeWithTracker(t, tr, rs, Config{})

	msg := newMessage("M1", "bob@s.whatsapp.net", false)
	in := InboundMessage{
		Stanza:  core.Stanza{Tag: "message", Attrs: map[string]string{"id": "M1", "from": "bob@s.whatsapp.net"}},
		Message: msg,
		Decrypt: func(context.Context, *core.WebMessage) error { return errors.New("bad mac") },
	}
	if err := it.Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	if msg.Status != core.StatusPending {
		t.Errorf("Message.Status = %s, want PENDING (unset on ciphertext path)", msg.Status)
	}
	if got := tracker.Current(msg.Key.String()); got != status.Pending {
		t.Errorf("tracker state = %s, want untouched PENDING", got)
	}
}

func TestProcessCiphertextRequestsRetryAndSuppressesReceipt(t *testing.T) {
	tr := &fakeTransport{connected: true}
	rs := &fakeReceiptSender{}
	it, _, _ := newTestIntake(t, tr, rs, Config{})

	in := InboundMessage{
		Stanza:  core.Stanza{Tag: "message", Attrs: map[string]string{"id": "M1", "from": "bob@s.whatsapp.net"}},
		Message: newMessage("M1", "bob@s.whatsapp.net", false),
		Decrypt: func(context.Context, *core.WebMessage) error { return errors.New("bad mac") },
	}
	if err := it.Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	if len(rs.sent) != 0 {
		t.Errorf("receipt calls = %d, want 0 for ciphertext failure", len(rs.sent))
	}
	// ack + retry receipt stanza.
	if len(tr.sent) < 2 {
		t.Errorf("sent stanzas = %d, want at least ack+retry", len(tr.sent))
	}
}

func TestProcessCiphertextSkipsRetryWhenTransportClosed(t *testing.T) {
	tr := &fakeTransport{connected: false}
	rs := &fakeReceiptSender{}
	it, _, _ := newTestIntake(t, tr, rs, Config{})

	in := InboundMessage{
		Stanza:  core.Stanza{Tag: "message", Attrs: map[string]string{"id": "M1", "from": "bob@s.whatsapp.net"}},
		Message: newMessage("M1", "bob@s.whatsapp.net", false),
		Decrypt: func(context.Context, *core.WebMessage) error { return errors.New("bad mac") },
	}
	if err := it.Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	if len(tr.sent) != 1 {
		t.Errorf("sent stanzas = %d, want just the ack", len(tr.sent))
	}
}

func TestProcessCiphertextNotEmittedByDefault(t *testing.T) {
	tr := &fakeTransport{connected: true}
	rs := &fakeReceiptSender{}
	it, b, _ := newTestIntake(t, tr, rs, Config{TreatCiphertextMessagesAsReal: false})

	ch, unsub := b.Subscribe(core.EventMessagesUpsert, 4)
	defer unsub()

	in := InboundMessage{
		Stanza:  core.Stanza{Tag: "message", Attrs: map[string]string{"id": "M1", "from": "bob@s.whatsapp.net"}},
		Message: newMessage("M1", "bob@s.whatsapp.net", false),
		Decrypt: func(context.Context, *core.WebMessage) error { return errors.New("bad mac") },
	}
	if err := it.Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		t.Fatalf("unexpected upsert event %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProcessCiphertextEmittedWhenConfigured(t *testing.T) {
	tr := &fakeTransport{connected: true}
	rs := &fakeReceiptSender{}
	it, b, _ := newTestIntake(t, tr, rs, Config{TreatCiphertextMessagesAsReal: true})

	ch, unsub := b.Subscribe(core.EventMessagesUpsert, 4)
	defer unsub()

	in := InboundMessage{
		Stanza:  core.Stanza{Tag: "message", Attrs: map[string]string{"id": "M1", "from": "bob@s.whatsapp.net"}},
		Message: newMessage("M1", "bob@s.whatsapp.net", false),
		Decrypt: func(context.Context, *core.WebMessage) error { return errors.New("bad mac") },
	}
	if err := it.Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected upsert event when TreatCiphertextMessagesAsReal is set")
	}
}

func TestProcessOfflineMessageUsesAppendUpsert(t *testing.T) {
	tr := &fakeTransport{connected: true}
	rs := &fakeReceiptSender{}
	it, b, _ := newTestIntake(t, tr, rs, Config{})

	ch, unsub := b.Subscribe(core.EventMessagesUpsert, 4)
	defer unsub()

	in := InboundMessage{
		Stanza:  core.Stanza{Tag: "message", Attrs: map[string]string{"id": "M1", "from": "bob@s.whatsapp.net"}},
		Message: newMessage("M1", "bob@s.whatsapp.net", false),
		Offline: true,
	}
	if err := it.Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		upsert := evt.Payload.(core.MessagesUpsert)
		if upsert.Type != core.UpsertAppend {
			t.Errorf("upsert type = %v, want append", upsert.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected messages.upsert event")
	}
}

func TestProcessStripsOversizedThumbnail(t *testing.T) {
	tr := &fakeTransport{connected: true}
	rs := &fakeReceiptSender{}
	it, b, _ := newTestIntake(t, tr, rs, Config{})

	ch, unsub := b.Subscribe(core.EventMessagesUpsert, 4)
	defer unsub()

	msg := newMessage("M1", "bob@s.whatsapp.net", false)
	msg.Message = &core.MessageContent{
		Kind: core.ContentMedia,
		Media: &core.MediaContent{
			MediaType:     "image",
			JPEGThumbnail: make([]byte, maxThumbnailBytes+1),
		},
	}

	in := InboundMessage{
		Stanza:  core.Stanza{Tag: "message", Attrs: map[string]string{"id": "M1", "from": "bob@s.whatsapp.net"}},
		Message: msg,
	}
	if err := it.Process(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	upsert := evt.Payload.(core.MessagesUpsert)
	if upsert.Messages[0].Message.Media.JPEGThumbnail != nil {
		t.Error("expected oversized thumbnail to be stripped")
	}
}
