// Package receipt implements the Receipt Interpreter: it turns inbound
// delivery/read/play/retry receipts into status updates, and — for retry
// receipts on messages we sent — drives the resend.
package receipt

import (
	"context"
	"strings"
	"time"

	"github.com/veltrix/wacore/internal/ack"
	"github.com/veltrix/wacore/internal/bus"
	"github.com/veltrix/wacore/internal/core"
	"github.com/veltrix/wacore/internal/lock"
	"github.com/veltrix/wacore/internal/status"
	"github.com/veltrix/wacore/internal/store"
	"go.uber.org/zap"
)

// Interpreter processes inbound receipt stanzas under a per-chat ordering
// mutex, per spec.md §4.4.
type Interpreter struct {
	transport core.Transport
	keys      core.KeyStore
	messages  core.MessageStore
	counters  *store.DB
	chatLocks *lock.KeyedMutex
	status    *status.Tracker
	bus       *bus.Bus
	ack       *ack.Emitter
	logger    *zap.Logger
}

// New creates an Interpreter.
func New(
	transport core.Transport,
	keys core.KeyStore,
	messages core.MessageStore,
	counters *store.DB,
	chatLocks *lock.KeyedMutex,
	tracker *status.Tracker,
	b *bus.Bus,
	ackEmitter *ack.Emitter,
	logger *zap.Logger,
) *Interpreter {
	return &Interpreter{
		transport: transport,
		keys:      keys,
		messages:  messages,
		counters:  counters,
		chatLocks: chatLocks,
		status:    tracker,
		bus:       b,
		ack:       ackEmitter,
		logger:    logger,
	}
}

// PerUserReceiptUpdate is the payload of message-receipt.update for a group
// chat (spec.md §4.4 step 2).
type PerUserReceiptUpdate struct {
	Key              core.MessageKey
	ReceiptTimestamp int64
	ReadTimestamp    int64
}

// MessageStatusUpdate is the payload of messages.update for a 1:1 chat.
type MessageStatusUpdate struct {
	Key    core.MessageKey
	Status core.MessageStatus
}

// Interpret handles one inbound receipt stanza.
func (in *Interpreter) Interpret(ctx context.Context, r core.Stanza) error {
	participant := r.Attr("participant")
	from := r.Attr("from")
	recipient := r.Attr("recipient")
	typ := r.Attr("type")
	id := r.Attr("id")

	isNodeFromMe := sameUser(firstNonEmpty(participant, from), in.keys.LocalJID())
	remoteJID := from
	if isNodeFromMe && !isGroupJID(from) {
		remoteJID = recipient
	}
	fromMe := recipient == "" || (typ == "retry" && isNodeFromMe)

	ids := []string{id}
	for _, c := range r.Children {
		if c.Tag == "item" {
			ids = append(ids, c.Attr("id"))
		}
	}

	suppress := false
	unlock := in.chatLocks.Lock(remoteJID)
	func() {
		defer unlock()

		st, handled := receiptStatus(typ)
		if handled {
			in.applyStatus(r, remoteJID, isGroupJID(from), isNodeFromMe, ids, st)
		}

		if typ == "retry" {
			count, _ := in.counters.RetryCount(ids[0])
			if count == 0 {
				count = 1
			}
			if count < 5 {
				if err := in.handleRetryReceipt(ctx, r, remoteJID, fromMe, ids); err != nil {
					in.logger.Warn("retry resend failed", zap.Error(err), zap.String("remote_jid", remoteJID))
					suppress = true
				}
			}
		}
	}()

	if suppress {
		return nil
	}
	return in.ack.Ack(ctx, r, ack.Override{})
}

func receiptStatus(typ string) (core.MessageStatus, bool) {
	switch typ {
	case "":
		return core.StatusDeliveryAck, true
	case "read", "read-self":
		return core.StatusRead, true
	case "played":
		return core.StatusPlayed, true
	case "retry":
		return 0, false
	default:
		return 0, false
	}
}

func (in *Interpreter) applyStatus(r core.Stanza, remoteJID string, isGroup, isNodeFromMe bool, ids []string, st core.MessageStatus) {
	if !(st > core.StatusDeliveryAck || !isNodeFromMe) {
		return
	}

	now := time.Now().Unix()
	for _, id := range ids {
		key := core.MessageKey{RemoteJID: remoteJID, ID: id, Participant: r.Attr("participant")}
		_ = in.status.Advance(key.String(), statusToState(st))

		if isGroup {
			update := PerUserReceiptUpdate{Key: key}
			if st == core.StatusDeliveryAck {
				update.ReceiptTimestamp = now
			} else {
				update.ReadTimestamp = now
			}
			in.bus.Publish(bus.Event{Kind: core.EventMessageReceiptUpdate, Timestamp: time.Now(), Payload: update})
			continue
		}

		in.bus.Publish(bus.Event{Kind: core.EventMessagesUpdate, Timestamp: time.Now(), Payload: MessageStatusUpdate{Key: key, Status: st}})
	}
}

func (in *Interpreter) handleRetryReceipt(ctx context.Context, r core.Stanza, remoteJID string, fromMe bool, ids []string) error {
	participant := firstNonEmpty(r.Attr("participant"), r.Attr("from"))

	if !fromMe {
		in.logger.Debug("retry receipt for peer message, log only", zap.String("remote_jid", remoteJID))
		return nil
	}

	if err := in.keys.AssertSessions(ctx, []string{participant}, true); err != nil {
		return err
	}
	if isGroupJID(remoteJID) {
		if err := in.keys.InvalidateSenderKey(ctx, remoteJID, participant); err != nil {
			return err
		}
	}

	for _, id := range ids {
		key := core.MessageKey{RemoteJID: remoteJID, ID: id, FromMe: true, Participant: participant}
		content, ok, err := in.messages.GetMessage(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		count, _ := in.counters.RetryCount(id)
		if count == 0 {
			count = 1
		}
		if err := in.counters.SetRetryCount(id, count+1); err != nil {
			return err
		}

		if err := in.transport.RelayMessage(ctx, remoteJID, content, core.RelayOptions{MessageID: id, Participant: participant}); err != nil {
			return err
		}
	}
	return nil
}

func statusToState(st core.MessageStatus) status.State {
	switch st {
	case core.StatusDeliveryAck:
		return status.DeliveryAck
	case core.StatusRead:
		return status.Read
	case core.StatusPlayed:
		return status.Played
	default:
		return status.Pending
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func isGroupJID(jid string) bool {
	return strings.HasSuffix(jid, "@g.us")
}

// sameUser compares two JIDs ignoring the optional device qualifier
// (glossary: "user[.device]@domain").
func sameUser(a, b string) bool {
	return baseUser(a) == baseUser(b)
}

func baseUser(jid string) string {
	at := strings.IndexByte(jid, '@')
	if at < 0 {
		return jid
	}
	user, domain := jid[:at], jid[at:]
	if dot := strings.IndexByte(user, '.'); dot >= 0 {
		user = user[:dot]
	}
	return user + domain
}
