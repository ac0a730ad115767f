// Command wacored is the demo daemon: it wires the pipeline from
// internal/daemon against a synthetic Transport and the other external
// collaborators instead of a real WhatsApp connection, then periodically
// feeds it fabricated inbound traffic so the wiring is observable.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/veltrix/wacore/internal/daemon"
	"github.com/veltrix/wacore/internal/session"
	"go.uber.org/fx"
)

func main() {
	instanceFlag := flag.String("instance", "", "instance name (overrides default.toml)")
	flag.Parse()

	instanceName := session.Resolve(*instanceFlag)
	if err := session.ValidateName(instanceName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.Provide(newSyntheticCollaborators),
		daemon.Module(daemon.Params{InstanceName: instanceName, LocalName: "Demo Account"}),
		fx.Invoke(runDemoFeed),
	)

	app.Run()
}
