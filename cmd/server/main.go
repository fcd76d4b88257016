package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"reviewflow/internal/app/server"
	"reviewflow/internal/platform/config"
)

func main() {
	cfg := config.Load()
	server.SetupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}
