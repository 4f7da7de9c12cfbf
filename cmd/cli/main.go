package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/templesanathan/internal/buildinfo"
	"github.com/dmitrijs2005/templesanathan/internal/client/cli"
	"github.com/dmitrijs2005/templesanathan/internal/client/config"
	"github.com/dmitrijs2005/templesanathan/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	if buildinfo.Version != "" {
		cfg.AppVersion = buildinfo.Version
	}
	logger := logging.NewLogger(os.Stderr, cfg.LogLevel)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "app stopped", "err", err)
	}
}
