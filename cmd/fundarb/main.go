package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"fundarb/internal/infrastructure/config"
	"fundarb/internal/infrastructure/logger"
	"fundarb/internal/infrastructure/svc"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	tickers := flag.String("ticker", "", "comma separated tickers, overrides app.tickers")
	once := flag.Bool("once", false, "run the next settlement cycle only, then exit")
	dryRun := flag.Bool("dry-run", false, "decide and size only, never place orders")
	flag.Parse()

	logger.Setup("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	if *tickers != "" {
		cfg.App.Tickers = config.NormalizeTickers(strings.Split(*tickers, ","))
	}
	if *dryRun {
		cfg.App.DryRun = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service context initialization failed")
	}
	defer sc.Close()

	log.Info().
		Str("config", *configPath).
		Interface("settings", cfg.Redacted()).
		Bool("once", *once).
		Msg("fundarb started")

	scheduler := sc.Container().Scheduler()
	if *once {
		settlement := scheduler.NextSettlement(scheduler.Now(ctx))
		if err := scheduler.RunCycle(ctx, settlement); err != nil {
			log.Error().Err(err).Time("settlement", settlement).Msg("funding cycle failed")
		}
		_ = sc.Sink.NewLine()
		return
	}

	if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("scheduler exited")
	}
	_ = sc.Sink.NewLine()
	log.Info().Msg("fundarb stopped")
}
