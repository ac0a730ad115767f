package main

import (
	wacore "github.com/veltrix/wacore"
	"github.com/veltrix/wacore/internal/demodata"
	"go.uber.org/zap"
)

// newSyntheticCollaborators provides the fx graph with a stand-in for
// every external seam internal/daemon.Module requires. ThumbnailGenerator
// is left nil, which Outbound Media Prep already treats as "no thumbnail"
// rather than an error.
func newSyntheticCollaborators(logger *zap.Logger) (
	wacore.Transport,
	wacore.KeyStore,
	wacore.MessageStore,
	wacore.MediaUploadNegotiator,
	wacore.PreKeyReplenisher,
	wacore.AppStateResyncer,
	wacore.ReceiptSender,
	wacore.ThumbnailGenerator,
) {
	return demodata.NewTransport(logger),
		demodata.NewKeyStore(),
		demodata.NewMessageStore(),
		demodata.NewUploadNegotiator(logger),
		demodata.NewReplenisher(logger),
		demodata.NewResyncer(logger),
		demodata.NewReceiptSender(logger),
		nil
}
