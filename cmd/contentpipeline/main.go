package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"contentpipeline/internal/app"
	"contentpipeline/internal/config"
	"contentpipeline/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single automation cycle and exit")
	flag.Parse()

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx, *once); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
