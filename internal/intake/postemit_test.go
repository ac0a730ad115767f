package intake

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/veltrix/wacore/internal/bus"
	"github.com/veltrix/wacore/internal/core"
	"github.com/veltrix/wacore/internal/lock"
	"github.com/veltrix/wacore/internal/store"
	"github.com/veltrix/wacore/internal/syncgate"
	"go.uber.org/zap"
)

type fakeResyncer struct{}

func (f *fakeResyncer) ResyncMainAppState(context.Context, map[string]core.ChatStateDelta) error {
	return nil
}

func newTestPostEmit(t *testing.T, rs *fakeReceiptSender, downloadHistory bool) (*PostEmit, *bus.Bus, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "core.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	tr := &fakeTransport{connected: true}
	errSink := func(error, string) {}
	gate := syncgate.New(tr, &fakeResyncer{}, db, errSink, zap.NewNop())

	b := bus.New()
	p := NewPostEmit(b, lock.NewKeyedMutex(), gate, rs, "me", downloadHistory, errSink, zap.NewNop())
	return p, b, db
}

func historySyncMessage(id, from, batchID string) *core.WebMessage {
	return &core.WebMessage{
		Key: core.MessageKey{ID: id, RemoteJID: from},
		Message: &core.MessageContent{
			Kind:             core.ContentProtocol,
			ProtocolType:     "HISTORY_SYNC_NOTIFICATION",
			HistorySyncNotif: &core.HistorySyncNotification{BatchID: batchID},
		},
	}
}

func TestPostEmitRecordsHistoryBatchWhenEnabled(t *testing.T) {
	rs := &fakeReceiptSender{}
	p, _, _ := newTestPostEmit(t, rs, true)

	p.handle(context.Background(), historySyncMessage("H1", "bob@s.whatsapp.net", "batch-1"))

	if len(rs.sent) != 1 || rs.sent[0].typ != core.ReceiptHistSync {
		t.Fatalf("receipt calls = %+v, want one hist_sync receipt", rs.sent)
	}
}

func TestPostEmitSkipsHistorySyncWhenDisabled(t *testing.T) {
	rs := &fakeReceiptSender{}
	p, _, _ := newTestPostEmit(t, rs, false)

	p.handle(context.Background(), historySyncMessage("H2", "bob@s.whatsapp.net", "batch-2"))

	if len(rs.sent) != 0 {
		t.Errorf("receipt calls = %+v, want none when DownloadHistory is false", rs.sent)
	}
}

func TestPostEmitEmitsContactAndCredsUpdatesRegardlessOfDownloadHistory(t *testing.T) {
	rs := &fakeReceiptSender{}
	p, b, _ := newTestPostEmit(t, rs, false)

	contacts, unsub := b.Subscribe(core.EventContactsUpdate, 4)
	defer unsub()
	creds, unsubCreds := b.Subscribe(core.EventCredsUpdate, 4)
	defer unsubCreds()

	msg := &core.WebMessage{
		Key:      core.MessageKey{ID: "M1", RemoteJID: "bob@s.whatsapp.net", FromMe: true},
		PushName: "Bob",
	}
	p.handle(context.Background(), msg)

	select {
	case evt := <-contacts:
		update := evt.Payload.(core.ContactUpdate)
		if update.Name != "Bob" {
			t.Errorf("contact update = %+v, want name Bob", update)
		}
	case <-time.After(time.Second):
		t.Fatal("expected contacts.update event")
	}

	select {
	case evt := <-creds:
		update := evt.Payload.(CredsNameUpdate)
		if update.Name != "Bob" {
			t.Errorf("creds update = %+v, want name Bob", update)
		}
	case <-time.After(time.Second):
		t.Fatal("expected creds.update event")
	}
}
