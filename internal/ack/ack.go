// Package ack emits the single ack stanza every inbound stanza owes the
// server, regardless of how interpretation of that stanza turns out.
package ack

import (
	"context"

	"github.com/veltrix/wacore/internal/core"
	"go.uber.org/zap"
)

// Emitter sends one ack per inbound stanza.
type Emitter struct {
	transport core.Transport
	logger    *zap.Logger
}

// New creates an Emitter over the given transport.
func New(transport core.Transport, logger *zap.Logger) *Emitter {
	return &Emitter{transport: transport, logger: logger}
}

// Override lets a caller force the ack's type attribute, used by Message
// Intake for the cases where the caller already knows the outcome differs
// from a plain passthrough (none currently; kept for symmetry with the
// propagation rule in spec.md §4.1).
type Override struct {
	Type *string
}

// Ack sends {id, to=from, class=tag, participant?, type?} in response to in.
// participant is propagated iff present on in. type is propagated iff in.Tag
// is not "message" and override.Type is nil.
func (e *Emitter) Ack(ctx context.Context, in core.Stanza, override Override) error {
	attrs := map[string]string{
		"id":    in.Attr("id"),
		"to":    in.Attr("from"),
		"class": in.Tag,
	}

	if p := in.Attr("participant"); p != "" {
		attrs["participant"] = p
	}

	switch {
	case override.Type != nil:
		attrs["type"] = *override.Type
	case in.Tag != "message":
		if t := in.Attr("type"); t != "" {
			attrs["type"] = t
		}
	}

	out := core.Stanza{Tag: "ack", Attrs: attrs}

	if err := e.transport.SendNode(ctx, out); err != nil {
		e.logger.Debug("ack send failed",
			zap.String("id", attrs["id"]),
			zap.String("class", attrs["class"]),
			zap.Error(err))
		return err
	}
	return nil
}
