package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"recurcal/internal/cli"
	appLog "recurcal/internal/log"
)

func main() {
	// A missing .env is fine; it only supplies RECURCAL_CONFIG and friends.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		appLog.Error("recurcal failed", err)
		stop()
		os.Exit(1)
	}
}
