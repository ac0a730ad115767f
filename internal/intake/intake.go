// Package intake implements Message Intake, the per-message state machine
// that acks, awaits decryption, issues retries, sends semantic receipts,
// and emits the resulting WebMessage (spec.md §4.5).
package intake

import (
	"context"
	"strings"
	"time"

	"github.com/veltrix/wacore/internal/ack"
	"github.com/veltrix/wacore/internal/bus"
	"github.com/veltrix/wacore/internal/core"
	"github.com/veltrix/wacore/internal/lock"
	"github.com/veltrix/wacore/internal/retry"
	"github.com/veltrix/wacore/internal/status"
	"go.uber.org/zap"
)

const maxThumbnailBytes = 20 * 1024

// DecryptTask mutates msg in place on success. A returned error leaves msg
// unmutated; Process then marks it CIPHERTEXT.
type DecryptTask func(ctx context.Context, msg *core.WebMessage) error

// InboundMessage is the pre-decoded envelope Process consumes. Decoding the
// binary stanza format itself is out of scope (spec.md Non-goals); callers
// supply the already-parsed fields.
type InboundMessage struct {
	Stanza   core.Stanza
	Message  *core.WebMessage
	Category string // "peer" or any other conversational category
	Author   string // the actual sending device, used for 1:1 sender receipts
	Offline  bool   // stanza carried the "offline" attribute
	Decrypt  DecryptTask
}

// Config mirrors the Config surface fields Message Intake consults
// directly.
type Config struct {
	TreatCiphertextMessagesAsReal bool
	RetryRequestDelayMs           int
	SendActiveReceipts            bool
}

// Intake runs the RECEIVED -> ACKED -> DECRYPTING -> {DECRYPTED | FAILED}
// pipeline for one inbound message stanza at a time (callers serialize per
// remoteJid using lock.KeyedMutex — spec.md §4.7).
type Intake struct {
	ack           *ack.Emitter
	retryReq      *retry.Requester
	retryMutex    *lock.RetryMutex
	receiptSender core.ReceiptSender
	transport     core.Transport
	bus           *bus.Bus
	status        *status.Tracker
	logger        *zap.Logger
	localJID      string
	errSink       core.UnexpectedErrorSink
	cfg           Config
}

// New creates an Intake.
func New(
	ackEmitter *ack.Emitter,
	retryReq *retry.Requester,
	retryMutex *lock.RetryMutex,
	receiptSender core.ReceiptSender,
	transport core.Transport,
	b *bus.Bus,
	tracker *status.Tracker,
	localJID string,
	errSink core.UnexpectedErrorSink,
	cfg Config,
	logger *zap.Logger,
) *Intake {
	return &Intake{
		ack:           ackEmitter,
		retryReq:      retryReq,
		retryMutex:    retryMutex,
		receiptSender: receiptSender,
		transport:     transport,
		bus:           b,
		status:        tracker,
		logger:        logger,
		localJID:      localJID,
		errSink:       errSink,
		cfg:           cfg,
	}
}

// Process runs one inbound message through the full state machine.
func (it *Intake) Process(ctx context.Context, in InboundMessage) error {
	ackErr := it.ack.Ack(ctx, in.Stanza, ack.Override{})
	if ackErr != nil {
		it.logger.Debug("ack send failed", zap.Error(ackErr))
	}

	if in.Decrypt != nil {
		if err := in.Decrypt(ctx, in.Message); err != nil {
			in.Message.MessageStubType = core.StubCiphertext
		}
	}

	isCiphertext := in.Message.MessageStubType == core.StubCiphertext

	if isCiphertext {
		it.retryMutex.Do(func() {
			if !it.transport.IsConnected() {
				return
			}
			if err := it.retryReq.Request(ctx, in.Stanza); err != nil {
				it.errSink(err, "intake.retry")
			}
			if it.cfg.RetryRequestDelayMs > 0 {
				time.Sleep(time.Duration(it.cfg.RetryRequestDelayMs) * time.Millisecond)
			}
		})
	} else {
		if ackErr == nil {
			in.Message.Status = core.StatusServerAck
			_ = it.status.Advance(in.Message.Key.String(), status.ServerAck)
		}

		receiptType, participant := it.receiptFor(in)
		ids := []string{in.Message.Key.ID}
		if err := it.receiptSender.SendReceipt(ctx, in.Message.Key.RemoteJID, participant, ids, receiptType); err != nil {
			it.errSink(err, "intake.sendReceipt")
		}
	}

	cleanMessage(in.Message)

	if isCiphertext && !it.cfg.TreatCiphertextMessagesAsReal {
		return nil
	}

	upsertType := core.UpsertNotify
	if in.Offline {
		upsertType = core.UpsertAppend
	}
	it.bus.Publish(bus.Event{
		Kind:      core.EventMessagesUpsert,
		Timestamp: time.Now(),
		Payload:   core.MessagesUpsert{Type: upsertType, Messages: []*core.WebMessage{in.Message}},
	})
	return nil
}

func (it *Intake) receiptFor(in InboundMessage) (core.ReceiptType, string) {
	participant := in.Stanza.Attr("participant")

	switch {
	case in.Category == "peer":
		return core.ReceiptPeerMsg, participant
	case in.Message.Key.FromMe:
		if !isGroupJID(in.Message.Key.RemoteJID) {
			participant = in.Author
		}
		return core.ReceiptSender, participant
	case !it.cfg.SendActiveReceipts:
		return core.ReceiptInactive, participant
	default:
		return core.ReceiptDelivered, participant
	}
}

// cleanMessage strips fields not meant to survive into the emitted event:
// an oversized thumbnail is dropped since it was only needed to render the
// upload prompt, not to carry alongside every subsequent read of the
// message.
func cleanMessage(msg *core.WebMessage) {
	if msg.Message == nil || msg.Message.Media == nil {
		return
	}
	if len(msg.Message.Media.JPEGThumbnail) > maxThumbnailBytes {
		msg.Message.Media.JPEGThumbnail = nil
	}
}

func isGroupJID(jid string) bool {
	return strings.HasSuffix(jid, "@g.us")
}
