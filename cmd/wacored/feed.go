package main

import (
	"context"

	"github.com/veltrix/wacore/internal/demodata"
	"github.com/veltrix/wacore/internal/intake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// runDemoFeed drives Message Intake with fabricated inbound traffic so the
// demo daemon's wiring is observable; a real deployment's inbound stanzas
// come from the live Transport instead.
func runDemoFeed(lc fx.Lifecycle, intk *intake.Intake, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go demodata.RunFeed(ctx, intk.Process, logger)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
