package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	wacore "github.com/veltrix/wacore"
	"go.uber.org/fx"
)

type fakeTransport struct{}

func (fakeTransport) SendNode(context.Context, wacore.Stanza) error { return nil }
func (fakeTransport) IsConnected() bool                             { return true }
func (fakeTransport) RelayMessage(context.Context, string, *wacore.MessageContent, wacore.RelayOptions) error {
	return nil
}

type fakeKeyStore struct{}

func (fakeKeyStore) BeginTx(context.Context) (wacore.KeyStoreTx, error)        { return fakeTx{}, nil }
func (fakeKeyStore) IdentityPublicKey() []byte                                 { return nil }
func (fakeKeyStore) SignedPreKey() (uint32, []byte, []byte)                    { return 0, nil, nil }
func (fakeKeyStore) DeviceIdentity() []byte                                    { return nil }
func (fakeKeyStore) RegistrationID() uint32                                    { return 1 }
func (fakeKeyStore) LocalJID() string                                          { return "me@s.whatsapp.net" }
func (fakeKeyStore) AssertSessions(context.Context, []string, bool) error      { return nil }
func (fakeKeyStore) InvalidateSenderKey(context.Context, string, string) error { return nil }

type fakeTx struct{}

func (fakeTx) GenOnePreKey(context.Context) (uint32, []byte, error) { return 1, []byte("k"), nil }
func (fakeTx) Commit(context.Context) error                         { return nil }
func (fakeTx) Rollback(context.Context) error                       { return nil }

type fakeMessageStore struct{}

func (fakeMessageStore) GetMessage(context.Context, wacore.MessageKey) (*wacore.MessageContent, bool, error) {
	return nil, false, nil
}

type fakeNegotiator struct{}

func (fakeNegotiator) RequestUploadSlot(context.Context, string) (wacore.UploadSlot, error) {
	return wacore.UploadSlot{}, nil
}

type fakeReplenisher struct{}

func (fakeReplenisher) UploadPreKeys(context.Context) error { return nil }

type fakeResyncer struct{}

func (fakeResyncer) ResyncMainAppState(context.Context, map[string]wacore.ChatStateDelta) error {
	return nil
}

type fakeThumbnails struct{}

func (fakeThumbnails) Thumbnail(context.Context, []byte, string) ([]byte, error) { return nil, nil }

type fakeReceiptSender struct{}

func (fakeReceiptSender) SendReceipt(context.Context, string, string, []string, wacore.ReceiptType) error {
	return nil
}

func TestModuleStartsAndStopsCleanly(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "wacore.db")
	p := Params{InstanceName: "fxtest", DBPath: dbPath, LocalName: "Tester"}

	app := fx.New(
		fx.Provide(
			func() wacore.Transport { return fakeTransport{} },
			func() wacore.KeyStore { return fakeKeyStore{} },
			func() wacore.MessageStore { return fakeMessageStore{} },
			func() wacore.MediaUploadNegotiator { return fakeNegotiator{} },
			func() wacore.PreKeyReplenisher { return fakeReplenisher{} },
			func() wacore.AppStateResyncer { return fakeResyncer{} },
			func() wacore.ThumbnailGenerator { return fakeThumbnails{} },
			func() wacore.ReceiptSender { return fakeReceiptSender{} },
		),
		Module(p),
		fx.NopLogger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("app.Start() error = %v", err)
	}
	if err := app.Stop(ctx); err != nil {
		t.Fatalf("app.Stop() error = %v", err)
	}
}
