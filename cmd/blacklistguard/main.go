package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wisbric/blacklistguard/internal/app"
	"github.com/wisbric/blacklistguard/internal/config"
)

func main() {
	mode := flag.String("mode", "", "run mode: api or worker (overrides BLACKLISTGUARD_MODE)")
	source := flag.String("source", "", "force an immediate collection run for this source and exit (any mode)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	if *mode != "" {
		cfg.Mode = *mode
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *source != "" {
		if err := app.RunForceCollection(ctx, cfg, *source); err != nil {
			slog.Error("force collection failed", "source", *source, "error", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := app.Run(ctx, cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
