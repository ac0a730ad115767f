// Package call translates inbound "call" stanzas into core.CallEvent
// values and maintains the call-offer cache described in spec.md §3: an
// entry is inserted on offer, enriched on subsequent updates, and removed
// once a terminal status is reached.
package call

import (
	"context"
	"time"

	"github.com/veltrix/wacore/internal/ack"
	"github.com/veltrix/wacore/internal/bus"
	"github.com/veltrix/wacore/internal/core"
	"github.com/veltrix/wacore/internal/store"
	"go.uber.org/zap"
)

var terminalStatuses = map[string]bool{
	"reject":    true,
	"accept":    true,
	"timeout":   true,
	"terminate": true,
}

// Translator turns "call" stanzas into CallEvent values on the bus.
type Translator struct {
	ack    *ack.Emitter
	offers *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// New creates a Translator.
func New(ackEmitter *ack.Emitter, offers *store.DB, b *bus.Bus, logger *zap.Logger) *Translator {
	return &Translator{ack: ackEmitter, offers: offers, bus: b, logger: logger}
}

// Interpret handles one inbound call stanza: {tag=call, attrs.from,
// attrs.id?}, first child tag selects the lifecycle status
// (offer/accept/reject/timeout/terminate). Every call stanza is acked
// before interpretation, matching the unconditional-ack rule spec.md §4.3
// states for notifications (spec.md §8's "exactly one ack per stanza"
// invariant is not scoped to any one stanza tag).
func (t *Translator) Interpret(ctx context.Context, n core.Stanza) error {
	if err := t.ack.Ack(ctx, n, ack.Override{}); err != nil {
		t.logger.Debug("call ack send failed", zap.Error(err))
	}

	if len(n.Children) == 0 {
		return nil
	}
	child := n.Children[0]
	status := child.Tag

	callID := child.Attr("call-id")
	if callID == "" {
		callID = n.Attr("id")
	}

	existing, found, err := t.offers.GetCallOffer(callID)
	if err != nil {
		return err
	}

	evt := core.CallEvent{
		CallID:    callID,
		From:      n.Attr("from"),
		Status:    status,
		IsVideo:   child.Attr("video") == "1" || child.Attr("video") == "true",
		GroupJID:  child.Attr("group-jid"),
		Timestamp: time.Now().Unix(),
	}
	if found {
		// Enrich rather than overwrite fields a later stanza leaves blank.
		if evt.GroupJID == "" {
			evt.GroupJID = existing.GroupJID
		}
		if evt.From == "" {
			evt.From = existing.From
		}
	}

	if terminalStatuses[status] {
		if err := t.offers.DeleteCallOffer(callID); err != nil {
			return err
		}
	} else {
		if err := t.offers.UpsertCallOffer(store.CallOfferRow{
			CallID:   evt.CallID,
			From:     evt.From,
			Status:   evt.Status,
			IsVideo:  evt.IsVideo,
			GroupJID: evt.GroupJID,
			Ts:       evt.Timestamp,
		}); err != nil {
			return err
		}
	}

	t.bus.Publish(bus.Event{Kind: core.EventCall, Timestamp: time.Now(), Payload: evt})
	return nil
}
