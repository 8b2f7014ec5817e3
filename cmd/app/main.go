// Command app is the composition root: it loads configuration, wires
// every component, and runs until an interrupt or terminate signal
// arrives.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/corebooks/erp-core/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		log.Fatalf("app: %v", err)
	}

	svc, err := bootstrap.NewService(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("app: %v", err)
	}

	svc.Logger.Info("erp-core started")

	if err := svc.Run(ctx); err != nil {
		svc.Logger.Errorf("app: run: %v", err)
	}

	svc.Logger.Info("erp-core stopped")
}
