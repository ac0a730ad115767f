// Package demodata provides stand-ins for every external collaborator
// wacore.New and daemon.Module require, shared by the two demo binaries
// (cmd/wacored and cmd/wacotui) so neither needs a live WhatsApp connection
// to exercise the pipeline. None of this belongs in the library itself —
// a real caller supplies a transport speaking the live protocol and a
// Signal-protocol session store instead.
package demodata

import (
	"context"

	wacore "github.com/veltrix/wacore"
	"go.uber.org/zap"
)

// NewTransport returns a Transport that logs every send instead of writing
// to a socket.
func NewTransport(logger *zap.Logger) wacore.Transport {
	return &loggingTransport{logger: logger}
}

type loggingTransport struct {
	logger *zap.Logger
}

func (t *loggingTransport) SendNode(_ context.Context, s wacore.Stanza) error {
	t.logger.Info("demo transport: send", zap.String("tag", s.Tag))
	return nil
}

func (t *loggingTransport) IsConnected() bool { return true }

func (t *loggingTransport) RelayMessage(_ context.Context, jid string, _ *wacore.MessageContent, _ wacore.RelayOptions) error {
	t.logger.Info("demo transport: relay", zap.String("jid", jid))
	return nil
}

// NewKeyStore returns a KeyStore that hands out a fixed identity. A real
// KeyStore persists Signal-protocol session state; none of that applies to
// a demo feed that never actually encrypts anything.
func NewKeyStore() wacore.KeyStore { return staticKeyStore{} }

type staticKeyStore struct{}

func (staticKeyStore) BeginTx(context.Context) (wacore.KeyStoreTx, error) { return staticKeyTx{}, nil }
func (staticKeyStore) IdentityPublicKey() []byte                          { return []byte("demo-identity") }
func (staticKeyStore) SignedPreKey() (uint32, []byte, []byte) {
	return 1, []byte("demo-spk"), []byte("demo-sig")
}
func (staticKeyStore) DeviceIdentity() []byte                                    { return []byte("demo-device") }
func (staticKeyStore) RegistrationID() uint32                                    { return 1 }
func (staticKeyStore) LocalJID() string                                          { return "demo@s.whatsapp.net" }
func (staticKeyStore) AssertSessions(context.Context, []string, bool) error      { return nil }
func (staticKeyStore) InvalidateSenderKey(context.Context, string, string) error { return nil }

type staticKeyTx struct{}

func (staticKeyTx) GenOnePreKey(context.Context) (uint32, []byte, error) {
	return 1, []byte("demo-prekey"), nil
}
func (staticKeyTx) Commit(context.Context) error   { return nil }
func (staticKeyTx) Rollback(context.Context) error { return nil }

// NewMessageStore returns a MessageStore that never has a prior outbound
// message on hand, since the demo never actually sends one.
func NewMessageStore() wacore.MessageStore { return emptyMessageStore{} }

type emptyMessageStore struct{}

func (emptyMessageStore) GetMessage(context.Context, wacore.MessageKey) (*wacore.MessageContent, bool, error) {
	return nil, false, nil
}

// NewUploadNegotiator returns a MediaUploadNegotiator that hands back a
// fixed, never-dialed host.
func NewUploadNegotiator(logger *zap.Logger) wacore.MediaUploadNegotiator {
	return &loggingUploadNegotiator{logger: logger}
}

type loggingUploadNegotiator struct {
	logger *zap.Logger
}

func (n *loggingUploadNegotiator) RequestUploadSlot(_ context.Context, mediaType string) (wacore.UploadSlot, error) {
	n.logger.Info("demo negotiator: upload slot requested", zap.String("mediaType", mediaType))
	return wacore.UploadSlot{Auth: "demo-auth", Hosts: []string{"mmg.whatsapp.net"}}, nil
}

// NewReplenisher returns a PreKeyReplenisher that just logs.
func NewReplenisher(logger *zap.Logger) wacore.PreKeyReplenisher {
	return &loggingReplenisher{logger: logger}
}

type loggingReplenisher struct {
	logger *zap.Logger
}

func (r *loggingReplenisher) UploadPreKeys(context.Context) error {
	r.logger.Info("demo replenisher: prekeys topped up")
	return nil
}

// NewResyncer returns an AppStateResyncer that just logs.
func NewResyncer(logger *zap.Logger) wacore.AppStateResyncer {
	return &loggingResyncer{logger: logger}
}

type loggingResyncer struct {
	logger *zap.Logger
}

func (s *loggingResyncer) ResyncMainAppState(_ context.Context, recvChats map[string]wacore.ChatStateDelta) error {
	s.logger.Info("demo resyncer: app state resync", zap.Int("chats", len(recvChats)))
	return nil
}

// NewReceiptSender returns a ReceiptSender that just logs.
func NewReceiptSender(logger *zap.Logger) wacore.ReceiptSender {
	return &loggingReceiptSender{logger: logger}
}

type loggingReceiptSender struct {
	logger *zap.Logger
}

func (r *loggingReceiptSender) SendReceipt(_ context.Context, jid, participant string, ids []string, typ wacore.ReceiptType) error {
	r.logger.Info("demo receipt sender: sendReceipt",
		zap.String("jid", jid), zap.String("participant", participant),
		zap.Strings("ids", ids), zap.String("type", string(typ)))
	return nil
}

// Collaborators builds a full wacore.Collaborators value from the
// constructors above, for callers that drive the public Client API
// directly rather than fx.
func Collaborators(logger *zap.Logger) wacore.Collaborators {
	return wacore.Collaborators{
		Transport:             NewTransport(logger),
		KeyStore:              NewKeyStore(),
		MessageStore:          NewMessageStore(),
		MediaUploadNegotiator: NewUploadNegotiator(logger),
		PreKeyReplenisher:     NewReplenisher(logger),
		AppStateResyncer:      NewResyncer(logger),
		ReceiptSender:         NewReceiptSender(logger),
	}
}
