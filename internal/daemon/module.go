// Package daemon composes the full pipeline into one fx graph for the demo
// binary. The external collaborators spec.md treats out of scope
// (wacore.Transport, wacore.KeyStore, wacore.MessageStore,
// wacore.MediaUploadNegotiator, wacore.PreKeyReplenisher,
// wacore.AppStateResyncer, wacore.ReceiptSender, wacore.ThumbnailGenerator)
// are not provided here — the caller supplies them via fx.Provide alongside
// Module.
package daemon

import (
	"context"

	wacore "github.com/veltrix/wacore"
	"github.com/veltrix/wacore/internal/ack"
	"github.com/veltrix/wacore/internal/bus"
	"github.com/veltrix/wacore/internal/call"
	"github.com/veltrix/wacore/internal/config"
	"github.com/veltrix/wacore/internal/intake"
	"github.com/veltrix/wacore/internal/lock"
	"github.com/veltrix/wacore/internal/logging"
	"github.com/veltrix/wacore/internal/media"
	"github.com/veltrix/wacore/internal/notify"
	"github.com/veltrix/wacore/internal/receipt"
	"github.com/veltrix/wacore/internal/retry"
	"github.com/veltrix/wacore/internal/session"
	"github.com/veltrix/wacore/internal/status"
	"github.com/veltrix/wacore/internal/store"
	"github.com/veltrix/wacore/internal/syncgate"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved instance configuration passed to the fx module.
type Params struct {
	InstanceName string
	DBPath       string // optional override for testing; empty = use default
	LocalName    string // the account's own push name, for post-emit rename detection
}

// Module returns the fx module for the daemon, composing every pipeline
// component and its lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideConfig,
			provideStore,
			provideErrorSink,
			provideAck,
			provideRetry,
			provideStatusTracker,
			provideNotify,
			provideReceipt,
			provideCall,
			provideMedia,
			provideSyncGate,
			provideIntake,
			providePostEmit,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.InstanceName), p.InstanceName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.InstanceName); err != nil {
		return nil, err
	}
	logger.Info("acquiring instance lock", zap.String("instance", p.InstanceName))
	l, err := lock.Acquire(session.Dir(p.InstanceName))
	if err != nil {
		return nil, err
	}
	logger.Info("instance lock acquired")
	return l, nil
}

func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath(p.InstanceName))
	if err != nil {
		return &config.Config{MinPreKeyCount: 5, SendActiveReceipts: true}, nil
	}
	return cfg, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := p.DBPath
	if dbPath == "" {
		dbPath = session.StoreDBPath(p.InstanceName)
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideErrorSink(logger *zap.Logger) wacore.UnexpectedErrorSink {
	return func(err error, ctx string) {
		logger.Error("unexpected pipeline error", zap.Error(err), zap.String("context", ctx))
	}
}

func provideAck(transport wacore.Transport, logger *zap.Logger) *ack.Emitter {
	return ack.New(transport, logger)
}

func provideRetry(transport wacore.Transport, keys wacore.KeyStore, db *store.DB, b *bus.Bus, logger *zap.Logger) *retry.Requester {
	return retry.New(transport, keys, db, b, logger)
}

func provideNotify(emitter *ack.Emitter, b *bus.Bus, keys wacore.PreKeyReplenisher, ks wacore.KeyStore, cfg *config.Config, logger *zap.Logger) *notify.Interpreter {
	minPreKeys := cfg.MinPreKeyCount
	if minPreKeys == 0 {
		minPreKeys = 5
	}
	return notify.New(emitter, b, keys, ks.LocalJID(), minPreKeys, logger)
}

func provideStatusTracker() *status.Tracker {
	return status.NewTracker()
}

func provideReceipt(
	transport wacore.Transport,
	keys wacore.KeyStore,
	messages wacore.MessageStore,
	db *store.DB,
	emitter *ack.Emitter,
	b *bus.Bus,
	tracker *status.Tracker,
	logger *zap.Logger,
) *receipt.Interpreter {
	chatLocks := lock.NewKeyedMutex()
	return receipt.New(transport, keys, messages, db, chatLocks, tracker, b, emitter, logger)
}

func provideCall(emitter *ack.Emitter, db *store.DB, b *bus.Bus, logger *zap.Logger) *call.Translator {
	return call.New(emitter, db, b, logger)
}

func provideMedia(negotiator wacore.MediaUploadNegotiator, thumbs wacore.ThumbnailGenerator, keys wacore.KeyStore, logger *zap.Logger) *media.Preparer {
	return media.New(negotiator, thumbs, keys.LocalJID(), logger)
}

func provideSyncGate(transport wacore.Transport, resyncer wacore.AppStateResyncer, db *store.DB, errSink wacore.UnexpectedErrorSink, cfg *config.Config, logger *zap.Logger) *syncgate.Gate {
	opts := []syncgate.Option{}
	if d := cfg.HistorySyncDebounce(); d > 0 {
		opts = append(opts, syncgate.WithDebounceWindow(d))
	}
	return syncgate.New(transport, resyncer, db, errSink, logger, opts...)
}

func provideIntake(
	emitter *ack.Emitter,
	reqr *retry.Requester,
	receiptSender wacore.ReceiptSender,
	transport wacore.Transport,
	keys wacore.KeyStore,
	b *bus.Bus,
	tracker *status.Tracker,
	errSink wacore.UnexpectedErrorSink,
	cfg *config.Config,
	logger *zap.Logger,
) *intake.Intake {
	retryMu := lock.NewRetryMutex()
	return intake.New(emitter, reqr, retryMu, receiptSender, transport, b, tracker, keys.LocalJID(), errSink, intake.Config{
		TreatCiphertextMessagesAsReal: cfg.TreatCiphertextMessagesAsReal,
		RetryRequestDelayMs:           cfg.RetryRequestDelayMs,
		SendActiveReceipts:            cfg.SendActiveReceipts,
	}, logger)
}

func providePostEmit(p Params, b *bus.Bus, gate *syncgate.Gate, receiptSender wacore.ReceiptSender, cfg *config.Config, errSink wacore.UnexpectedErrorSink, logger *zap.Logger) *intake.PostEmit {
	chatLocks := lock.NewKeyedMutex()
	return intake.NewPostEmit(b, chatLocks, gate, receiptSender, p.LocalName, cfg.DownloadHistory, errSink, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, postEmit *intake.PostEmit, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			postEmit.Start(ctx)
			logger.Info("pipeline started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			postEmit.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("pipeline stopped")
			return nil
		},
	})
}
