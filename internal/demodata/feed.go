package demodata

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	wacore "github.com/veltrix/wacore"
	"go.uber.org/zap"
)

// RunFeed periodically fabricates an inbound message and passes it to
// handle, since neither demo binary has a real Transport receiving
// anything off a wire. It runs until ctx is cancelled.
func RunFeed(ctx context.Context, handle func(context.Context, wacore.InboundMessage) error, logger *zap.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n++
			if err := handle(ctx, syntheticMessage(n)); err != nil {
				logger.Warn("demo feed: handler failed", zap.Error(err))
			}
		}
	}
}

func syntheticMessage(n int) wacore.InboundMessage {
	id := uuid.NewString()
	msg := &wacore.WebMessage{
		Key: wacore.MessageKey{
			RemoteJID: "demo-peer@s.whatsapp.net",
			ID:        id,
		},
		MessageTimestamp: time.Now().Unix(),
		PushName:         "Demo Peer",
		Message: &wacore.MessageContent{
			Kind: wacore.ContentText,
			Text: fmt.Sprintf("synthetic message #%d", n),
		},
	}
	return wacore.InboundMessage{
		Stanza: wacore.Stanza{
			Tag:   "message",
			Attrs: map[string]string{"id": id, "from": msg.Key.RemoteJID},
		},
		Message: msg,
	}
}
