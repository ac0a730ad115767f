// Package wacore implements the decode-independent core of a chat client
// pipeline: message intake, decryption-failure retry, notification and
// receipt interpretation, call-offer translation, outbound media
// preparation, and history-sync gating. Everything upstream of this package
// (transport framing, the Signal-protocol session store, bulk app-state
// sync) is treated as an external collaborator supplied through the
// interfaces in interfaces.go.
package wacore

import (
	"context"
	"fmt"
	"time"

	"github.com/veltrix/wacore/internal/ack"
	"github.com/veltrix/wacore/internal/bus"
	"github.com/veltrix/wacore/internal/call"
	"github.com/veltrix/wacore/internal/intake"
	"github.com/veltrix/wacore/internal/lock"
	"github.com/veltrix/wacore/internal/media"
	"github.com/veltrix/wacore/internal/notify"
	"github.com/veltrix/wacore/internal/receipt"
	"github.com/veltrix/wacore/internal/retry"
	"github.com/veltrix/wacore/internal/status"
	"github.com/veltrix/wacore/internal/store"
	"github.com/veltrix/wacore/internal/syncgate"
	"go.uber.org/zap"
)

// InboundMessage is the pre-decoded envelope HandleMessage consumes.
// Decoding the binary stanza format and performing the Signal-protocol
// decryption itself are both out of scope; callers supply the parsed
// fields and a Decrypt callback that mutates Message in place.
type InboundMessage = intake.InboundMessage

// DecryptTask decrypts msg in place. A returned error leaves msg
// unmutated; HandleMessage then marks it as ciphertext and drives the
// retry-request flow instead of emitting it.
type DecryptTask = intake.DecryptTask

// MediaOptions carries the caller-supplied metadata for one outbound
// media send (caption, quoted message, pre-rendered thumbnail).
type MediaOptions = media.Options

// Collaborators groups every external seam the pipeline needs. All fields
// are required except ThumbnailGenerator, which may be left nil — Outbound
// Media Prep then omits the thumbnail rather than failing.
type Collaborators struct {
	Transport             Transport
	KeyStore              KeyStore
	MessageStore          MessageStore
	MediaUploadNegotiator MediaUploadNegotiator
	PreKeyReplenisher     PreKeyReplenisher
	AppStateResyncer      AppStateResyncer
	ReceiptSender         ReceiptSender
	ThumbnailGenerator    ThumbnailGenerator
}

func (c Collaborators) validate() error {
	missing := []string{}
	if c.Transport == nil {
		missing = append(missing, "Transport")
	}
	if c.KeyStore == nil {
		missing = append(missing, "KeyStore")
	}
	if c.MessageStore == nil {
		missing = append(missing, "MessageStore")
	}
	if c.MediaUploadNegotiator == nil {
		missing = append(missing, "MediaUploadNegotiator")
	}
	if c.PreKeyReplenisher == nil {
		missing = append(missing, "PreKeyReplenisher")
	}
	if c.AppStateResyncer == nil {
		missing = append(missing, "AppStateResyncer")
	}
	if c.ReceiptSender == nil {
		missing = append(missing, "ReceiptSender")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required collaborators: %v", missing)
	}
	return nil
}

// Options configures the ambient, non-collaborator parts of a Client: the
// Config surface's tunables (§6) plus the pieces every deployment needs
// regardless of transport (where the store lives, how errors and logs
// surface). Library callers normally construct Options directly in code
// rather than loading it from a config file.
type Options struct {
	// DBPath is the sqlite database path backing retry counters, the
	// call-offer cache, and the history-sync batch ledger. Required.
	DBPath string

	// LocalName is the account's own push name, used to detect and emit
	// a creds-update event when the server reports it changed.
	LocalName string

	TreatCiphertextMessagesAsReal bool
	RetryRequestDelayMs           int
	SendActiveReceipts            bool

	// DownloadHistory gates whether a hist_sync notification is honored at
	// all: when false, Post-Emit skips both the history-sync gate's batch
	// bookkeeping and the hist_sync receipt, rather than quietly
	// accumulating a batch ledger for a resync the caller never wants.
	DownloadHistory bool

	// MinPreKeyCount is the floor that triggers prekey replenishment on
	// an "encrypt" notification. Defaults to 5 when zero.
	MinPreKeyCount int

	// HistorySyncDebounce is how long the history-sync gate waits after
	// the last expected batch before firing AppStateResyncer. Defaults
	// to the syncgate package's built-in window when zero.
	HistorySyncDebounce time.Duration

	// ErrorSink receives errors from internal goroutines that have no
	// caller to return to. Defaults to logging through Logger.
	ErrorSink UnexpectedErrorSink

	// Logger receives structured pipeline logs. Defaults to a no-op
	// logger.
	Logger *zap.Logger
}

// Client is the public entry point: it wires every pipeline component
// behind a single inbound/outbound surface and an event subscription API.
// A Client owns its sqlite store and background goroutines; call Close
// when done with it.
type Client struct {
	bus       *bus.Bus
	db        *store.DB
	chatLocks *lock.KeyedMutex

	intake   *intake.Intake
	postEmit *intake.PostEmit
	notify   *notify.Interpreter
	receipt  *receipt.Interpreter
	call     *call.Translator
	media    *media.Preparer
	gate     *syncgate.Gate

	logger *zap.Logger
}

// New builds a Client from its external collaborators and options. The
// returned Client's background work (history-sync debounce timers,
// post-emit contact/creds bookkeeping) starts immediately; call Close to
// stop it and release the store.
func New(collab Collaborators, opts Options) (*Client, error) {
	if err := collab.validate(); err != nil {
		return nil, fmt.Errorf("wacore: %w", err)
	}
	if opts.DBPath == "" {
		return nil, fmt.Errorf("wacore: Options.DBPath is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	errSink := opts.ErrorSink
	if errSink == nil {
		errSink = func(err error, context string) {
			logger.Error("unexpected pipeline error", zap.Error(err), zap.String("context", context))
		}
	}

	db, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("wacore: opening store: %w", err)
	}

	b := bus.New()

	ackEmitter := ack.New(collab.Transport, logger)
	retryReq := retry.New(collab.Transport, collab.KeyStore, db, b, logger)
	retryMu := lock.NewRetryMutex()

	minPreKeys := opts.MinPreKeyCount
	if minPreKeys == 0 {
		minPreKeys = 5
	}
	notifyInterp := notify.New(ackEmitter, b, collab.PreKeyReplenisher, collab.KeyStore.LocalJID(), minPreKeys, logger)

	receiptLocks := lock.NewKeyedMutex()
	tracker := status.NewTracker()
	receiptInterp := receipt.New(collab.Transport, collab.KeyStore, collab.MessageStore, db, receiptLocks, tracker, b, ackEmitter, logger)

	callTranslator := call.New(ackEmitter, db, b, logger)

	mediaPreparer := media.New(collab.MediaUploadNegotiator, collab.ThumbnailGenerator, collab.KeyStore.LocalJID(), logger)

	var gateOpts []syncgate.Option
	if opts.HistorySyncDebounce > 0 {
		gateOpts = append(gateOpts, syncgate.WithDebounceWindow(opts.HistorySyncDebounce))
	}
	gate := syncgate.New(collab.Transport, collab.AppStateResyncer, db, errSink, logger, gateOpts...)

	intk := intake.New(ackEmitter, retryReq, retryMu, collab.ReceiptSender, collab.Transport, b, tracker, collab.KeyStore.LocalJID(), errSink, intake.Config{
		TreatCiphertextMessagesAsReal: opts.TreatCiphertextMessagesAsReal,
		RetryRequestDelayMs:           opts.RetryRequestDelayMs,
		SendActiveReceipts:            opts.SendActiveReceipts,
	}, logger)

	postEmitLocks := lock.NewKeyedMutex()
	postEmit := intake.NewPostEmit(b, postEmitLocks, gate, collab.ReceiptSender, opts.LocalName, opts.DownloadHistory, errSink, logger)
	postEmit.Start(context.Background())

	return &Client{
		bus:       b,
		db:        db,
		chatLocks: lock.NewKeyedMutex(),
		intake:    intk,
		postEmit:  postEmit,
		notify:    notifyInterp,
		receipt:   receiptInterp,
		call:      callTranslator,
		media:     mediaPreparer,
		gate:      gate,
		logger:    logger,
	}, nil
}

// HandleMessage runs one inbound "message" stanza through the full
// ack/decrypt/retry/receipt pipeline, serialized against every other
// message from the same chat. It blocks until acking, decryption, and any
// resulting receipt send have completed; the resulting WebMessage is
// emitted on the bus as EventMessagesUpsert. If decryption failed, a retry
// is requested instead and nothing is emitted unless
// Options.TreatCiphertextMessagesAsReal is set.
func (c *Client) HandleMessage(ctx context.Context, in InboundMessage) error {
	if in.Message == nil {
		return fmt.Errorf("wacore: HandleMessage: InboundMessage.Message is nil")
	}
	var procErr error
	c.chatLocks.Do("msg-"+in.Message.Key.RemoteJID, func() {
		procErr = c.intake.Process(ctx, in)
	})
	return procErr
}

// HandleNotification runs one inbound "notification" stanza through the
// Notification Interpreter (group lifecycle, media-retry, prekey
// replenishment, and device-list bookkeeping).
func (c *Client) HandleNotification(ctx context.Context, n Stanza) error {
	return c.notify.Interpret(ctx, n)
}

// HandleReceipt runs one inbound "receipt" stanza through the Receipt
// Interpreter, advancing delivery/read status and, for retry receipts,
// resending the original message.
func (c *Client) HandleReceipt(ctx context.Context, r Stanza) error {
	return c.receipt.Interpret(ctx, r)
}

// HandleCall runs one inbound "call" stanza through the call-offer
// translator, caching offers and emitting EventCall.
func (c *Client) HandleCall(ctx context.Context, n Stanza) error {
	return c.call.Interpret(ctx, n)
}

// PrepareMedia encrypts, uploads, and builds the ready-to-relay message
// content for one outbound media attachment. The caller still performs the
// actual relay via Transport.RelayMessage.
func (c *Client) PrepareMedia(ctx context.Context, buf []byte, mediaType string, opts MediaOptions) (*WebMessage, error) {
	return c.media.Prepare(ctx, buf, mediaType, opts)
}

// RecordChatDelta feeds one bulk history-ingest observation into the
// history-sync gate's accumulated RecvChats map, to be handed to
// AppStateResyncer once the gate fires.
func (c *Client) RecordChatDelta(delta ChatStateDelta) error {
	return c.gate.RecordChatDelta(delta)
}

// On subscribes fn to every event whose Kind has the given namespace as a
// dotted prefix (e.g. "messages" matches both EventMessagesUpsert and
// EventMessagesUpdate). fn runs on its own goroutine until the returned
// unsubscribe function is called.
func (c *Client) On(namespace string, bufSize int, fn func(Event)) (unsubscribe func()) {
	return c.bus.SubscribeFunc(namespace, bufSize, func(evt bus.Event) {
		fn(Event{Kind: evt.Kind, Timestamp: evt.Timestamp, Payload: evt.Payload})
	})
}

// Close stops background work and releases the store. A Client must not
// be used after Close returns.
func (c *Client) Close() error {
	c.postEmit.Stop()
	c.gate.Stop()
	return c.db.Close()
}
