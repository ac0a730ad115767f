package intake

import (
	"context"
	"strings"
	"time"

	"github.com/veltrix/wacore/internal/bus"
	"github.com/veltrix/wacore/internal/core"
	"github.com/veltrix/wacore/internal/lock"
	"github.com/veltrix/wacore/internal/syncgate"
	"go.uber.org/zap"
)

// CredsNameUpdate is the payload of creds.update as emitted by PostEmit
// (spec.md §4.5 post-emit step, "fromMe and the name differs from local
// me.name").
type CredsNameUpdate struct {
	Name string
}

// PostEmit is the subscriber on messages.upsert that queues contact-name
// updates and drives the history-sync gate. It runs under a disjoint mutex
// key space ('p-' + chatId) from Message Intake's own remoteJid keys to
// avoid the self-deadlock noted in spec.md's design notes on the cyclic
// component graph.
type PostEmit struct {
	bus             *bus.Bus
	chatLocks       *lock.KeyedMutex
	gate            *syncgate.Gate
	receiptSender   core.ReceiptSender
	localName       string
	downloadHistory bool
	errSink         core.UnexpectedErrorSink
	logger          *zap.Logger

	unsubscribe func()
}

// NewPostEmit creates a PostEmit subscriber. downloadHistory mirrors the
// Config surface's DownloadHistory (spec.md §6: "if true, history-sync
// notifications are honored"); when false, a hist_sync notification is
// observed but otherwise ignored — no batch is recorded and no hist_sync
// receipt is sent.
func NewPostEmit(
	b *bus.Bus,
	chatLocks *lock.KeyedMutex,
	gate *syncgate.Gate,
	receiptSender core.ReceiptSender,
	localName string,
	downloadHistory bool,
	errSink core.UnexpectedErrorSink,
	logger *zap.Logger,
) *PostEmit {
	return &PostEmit{
		bus:             b,
		chatLocks:       chatLocks,
		gate:            gate,
		receiptSender:   receiptSender,
		localName:       localName,
		downloadHistory: downloadHistory,
		errSink:         errSink,
		logger:          logger,
	}
}

// Start subscribes to messages.upsert. Call Stop to unsubscribe.
func (p *PostEmit) Start(ctx context.Context) {
	p.unsubscribe = p.bus.SubscribeFunc(core.EventMessagesUpsert, 256, func(evt bus.Event) {
		upsert, ok := evt.Payload.(core.MessagesUpsert)
		if !ok {
			return
		}
		for _, msg := range upsert.Messages {
			p.handle(ctx, msg)
		}
	})
}

// Stop unsubscribes from the bus.
func (p *PostEmit) Stop() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
}

func (p *PostEmit) handle(ctx context.Context, msg *core.WebMessage) {
	chatID := msg.Key.RemoteJID
	p.chatLocks.Do("p-"+chatID, func() {
		if msg.PushName != "" {
			p.bus.Publish(bus.Event{
				Kind:      core.EventContactsUpdate,
				Timestamp: time.Now(),
				Payload:   core.ContactUpdate{JID: senderJID(msg), Name: msg.PushName},
			})
		}

		if msg.Key.FromMe && msg.PushName != "" && msg.PushName != p.localName {
			p.bus.Publish(bus.Event{
				Kind:      core.EventCredsUpdate,
				Timestamp: time.Now(),
				Payload:   CredsNameUpdate{Name: msg.PushName},
			})
		}

		if notif := historySyncNotif(msg); notif != nil && p.downloadHistory {
			if err := p.gate.RecordBatch(ctx, notif.BatchID); err != nil {
				p.errSink(err, "intake.postemit.historySync")
			}
			target := toConsumerDomain(senderJID(msg))
			if err := p.receiptSender.SendReceipt(ctx, target, "", []string{msg.Key.ID}, core.ReceiptHistSync); err != nil {
				p.errSink(err, "intake.postemit.histSyncReceipt")
			}
		}
	})
}

func senderJID(msg *core.WebMessage) string {
	if msg.Key.Participant != "" {
		return msg.Key.Participant
	}
	return msg.Key.RemoteJID
}

func historySyncNotif(msg *core.WebMessage) *core.HistorySyncNotification {
	if msg.Message == nil || msg.Message.Kind != core.ContentProtocol {
		return nil
	}
	return msg.Message.HistorySyncNotif
}

// toConsumerDomain rewrites a JID's domain to the consumer space (glossary:
// "c.us"), used when addressing a hist_sync receipt back to the sender.
func toConsumerDomain(jid string) string {
	at := strings.IndexByte(jid, '@')
	if at < 0 {
		return jid
	}
	return jid[:at] + "@c.us"
}
