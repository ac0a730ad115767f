// Command wacotui runs the event dashboard against the same synthetic
// collaborators and fabricated feed as wacored, so the TUI is observable
// without a live WhatsApp connection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	wacore "github.com/veltrix/wacore"
	"github.com/veltrix/wacore/internal/demodata"
	"github.com/veltrix/wacore/internal/logging"
	"github.com/veltrix/wacore/internal/session"
	"github.com/veltrix/wacore/internal/tui"
)

func main() {
	instanceFlag := flag.String("instance", "", "instance name (overrides default.toml)")
	flag.Parse()

	instanceName := session.Resolve(*instanceFlag)
	if err := session.ValidateName(instanceName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := session.EnsureDir(instanceName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(session.LogPath(instanceName), instanceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	collab := wacore.Collaborators{
		Transport:             demodata.NewTransport(logger),
		KeyStore:              demodata.NewKeyStore(),
		MessageStore:          demodata.NewMessageStore(),
		MediaUploadNegotiator: demodata.NewUploadNegotiator(logger),
		PreKeyReplenisher:     demodata.NewReplenisher(logger),
		AppStateResyncer:      demodata.NewResyncer(logger),
		ReceiptSender:         demodata.NewReceiptSender(logger),
	}

	client, err := wacore.New(collab, wacore.Options{
		DBPath:             session.StoreDBPath(instanceName),
		LocalName:          "Demo Account",
		SendActiveReceipts: true,
		Logger:             logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	app := tui.NewApp(instanceName)
	unsubscribe := client.On("", 64, func(evt wacore.Event) {
		app.OnEvent(evt.Kind, evt.Payload, evt.Timestamp)
	})
	app.SetUnsubscribe(unsubscribe)

	feedCtx, cancelFeed := context.WithCancel(context.Background())
	go demodata.RunFeed(feedCtx, client.HandleMessage, logger)

	if err := app.Run(); err != nil {
		cancelFeed()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cancelFeed()
	time.Sleep(50 * time.Millisecond)
}
