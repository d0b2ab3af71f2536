package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"

	"PaperHarvester/internal/app"
	"PaperHarvester/internal/config"
	"PaperHarvester/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML config (default $PAPER_HARVESTER_CONFIG)")
	maxPages := flag.Int("max-pages", -1, "listing pages to crawl, 0 for no limit (overrides config)")
	startURL := flag.String("start-url", "", "listing URL to start from (overrides config)")
	flag.Parse()

	cfg := config.Load(*configPath)
	if *maxPages >= 0 {
		cfg.Source.MaxPages = maxPages
	}
	if *startURL != "" {
		cfg.Source.StartURL = *startURL
	}

	logger, closeLog := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			logger.Error("set LLM_API_KEY in the environment or .env before crawling", "error", err)
		} else {
			logger.Error("invalid configuration", "error", err)
		}
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		// Restore default handling so a second interrupt kills the process.
		stop()
	}()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		return 1
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return 1
	}
	if ctx.Err() != nil {
		logger.Info("interrupted, progress saved")
	}
	return 0
}
