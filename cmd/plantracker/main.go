package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"plan-tracker/internal/cli"
	"plan-tracker/internal/config"
	"plan-tracker/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag

	Serve  cli.ServeCmd  `cmd:"" help:"Run the API, the Telegram bot and the sweep scheduler." default:"1"`
	Sweep  cli.SweepCmd  `cmd:"" help:"Run one expiration sweep now."`
	Import cli.ImportCmd `cmd:"" help:"Import template plans from YAML."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("plantracker"),
		kong.Description("Multi-day plan tracker: templates, points and daily expiration sweeps"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{Debug: cfg.Debug, LogDir: cfg.LogDir}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: logger: %v\n", err)
		os.Exit(1)
	}

	app, err := cli.NewContext(ctx, cfg)
	if err != nil {
		logger.Fatal("startup failed", "err", err)
	}
	defer app.Close()

	if err := kctx.Run(app); err != nil {
		logger.Error("command failed", "err", err)
		app.Close()
		os.Exit(1)
	}
}
