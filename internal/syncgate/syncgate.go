// Package syncgate implements the History Sync Gate: a debounced trigger
// that fires one bulk app-state resync after a quiescent period of
// history-carrying messages (spec.md §4.8).
package syncgate

import (
	"context"
	"sync"
	"time"

	"github.com/veltrix/wacore/internal/core"
	"github.com/veltrix/wacore/internal/store"
	"go.uber.org/zap"
)

const debounceWindow = 6 * time.Second

// Gate owns the debounce timer and the transient HistoryCache/RecvChats
// state it drains on fire.
type Gate struct {
	transport core.Transport
	resyncer  core.AppStateResyncer
	db        *store.DB
	errSink   core.UnexpectedErrorSink
	logger    *zap.Logger
	window    time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// Option configures a Gate at construction.
type Option func(*Gate)

// WithDebounceWindow overrides the default 6-second quiet period. Tests use
// this to avoid real-time waits.
func WithDebounceWindow(d time.Duration) Option {
	return func(g *Gate) { g.window = d }
}

// New creates a Gate. errSink receives any error from the resync call.
func New(transport core.Transport, resyncer core.AppStateResyncer, db *store.DB, errSink core.UnexpectedErrorSink, logger *zap.Logger, opts ...Option) *Gate {
	g := &Gate{transport: transport, resyncer: resyncer, db: db, errSink: errSink, logger: logger, window: debounceWindow}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RecordBatch records a history batch id (set semantics: a repeat id is a
// no-op) and restarts the debounce timer. Call once per inbound message
// carrying a historySyncNotification.
func (g *Gate) RecordBatch(ctx context.Context, batchID string) error {
	if _, err := g.db.AddHistoryBatch(batchID); err != nil {
		return err
	}
	g.restart(ctx)
	return nil
}

// RecordChatDelta accumulates one chat-state observation ahead of the next
// fire (spec.md §3 RecvChats).
func (g *Gate) RecordChatDelta(delta core.ChatStateDelta) error {
	return g.db.UpsertRecvChat(store.RecvChatDelta{
		JID:                   delta.JID,
		ConversationTimestamp: delta.ConversationTimestamp,
		UnreadCount:           delta.UnreadCount,
	})
}

func (g *Gate) restart(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(g.window, func() { g.fire(ctx) })
}

// Stop cancels a pending timer without firing it, for shutdown.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Gate) fire(ctx context.Context) {
	if !g.transport.IsConnected() {
		// Skip the resync call; leave HistoryCache/RecvChats intact so a
		// later restart still has the accumulated deltas to report.
		g.logger.Debug("history sync gate fired while transport closed, skipping resync")
		return
	}

	recvChats, err := g.db.RecvChats()
	if err != nil {
		g.errSink(err, "syncgate.fire")
		return
	}

	deltas := make(map[string]core.ChatStateDelta, len(recvChats))
	for jid, d := range recvChats {
		deltas[jid] = core.ChatStateDelta{JID: d.JID, ConversationTimestamp: d.ConversationTimestamp, UnreadCount: d.UnreadCount}
	}

	if err := g.resyncer.ResyncMainAppState(ctx, deltas); err != nil {
		g.errSink(err, "syncgate.fire")
		return
	}

	if err := g.db.ClearHistoryCache(); err != nil {
		g.errSink(err, "syncgate.fire")
		return
	}
	if err := g.db.ClearRecvChats(); err != nil {
		g.errSink(err, "syncgate.fire")
	}
}
