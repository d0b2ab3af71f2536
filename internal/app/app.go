package app

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"PaperHarvester/internal/config"
	"PaperHarvester/internal/infrastructure/fetcher"
	"PaperHarvester/internal/infrastructure/llm"
	"PaperHarvester/internal/infrastructure/parser"
	"PaperHarvester/internal/infrastructure/report"
	"PaperHarvester/internal/infrastructure/scheduler"
	"PaperHarvester/internal/infrastructure/storage"
	"PaperHarvester/internal/infrastructure/telegram"
	"PaperHarvester/internal/ports"
	"PaperHarvester/internal/scanner"
	"PaperHarvester/internal/store"
	"PaperHarvester/internal/usecase"
)

const stopTimeout = time.Minute

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	crawler   *usecase.Crawler
	finalizer *usecase.Finalizer
	notifier  ports.Notifier
	scheduler *usecase.Scheduler
	ledger    ports.Ledger
}

// New builds the application graph. Optional adapters (ledger, telegram, PDF
// fallback) are enabled from configuration; a ledger that cannot be opened is
// logged and skipped.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = slog.Default()
	}
	loc := cfg.Scheduler.Location()
	clock := func() time.Time { return time.Now().In(loc) }

	pageFetcher := fetcher.New(nil, fetcher.Options{
		Timeout:         cfg.Fetch.Timeout,
		RequestInterval: cfg.Fetch.RequestInterval,
		UserAgent:       cfg.Fetch.UserAgent,
		AcceptLanguage:  cfg.Fetch.AcceptLanguage,
		MaxBodyBytes:    cfg.Fetch.MaxBodyBytes,
	})

	registry := scanner.NewRegistry()
	registry.Register(parser.NewArxivListing())

	source, err := parser.NewStrategySource(registry, cfg.Source.Scanner, pageFetcher, baseLogger.With("component", "source"))
	if err != nil {
		return nil, fmt.Errorf("listing source: %w", err)
	}

	a := &Application{cfg: cfg, logger: baseLogger.With("component", "app")}

	if cfg.Ledger.Enabled() {
		a.ledger = openLedger(ctx, cfg.Ledger, baseLogger.With("component", "ledger"))
	}

	st := store.New(cfg.Storage.ArchivePath, a.ledger, baseLogger.With("component", "store"))

	deps := usecase.CrawlerDeps{
		Source:     source,
		Fetcher:    pageFetcher,
		Extractor:  parser.NewArxivDetail(),
		Summarizer: llm.NewChatGPTClient(cfg.LLM, baseLogger.With("component", "llm")),
		Store:      st,
		Cursor:     store.NewCursorFile(cfg.Storage.CursorPath),
		Resume:     cfg.Crawl.ResumeEnabled(),
		Clock:      clock,
		Logger:     baseLogger.With("component", "crawler"),
	}
	if cfg.Extract.PDFFallback {
		deps.Fallback = parser.NewPDFIntroduction(pageFetcher)
	}
	a.crawler = usecase.NewCrawler(deps)

	renderer := report.NewMarkdown(cfg.Report.Path, cfg.Report.Title, cfg.Report.RecentDays, baseLogger.With("component", "report"))
	a.finalizer = usecase.NewFinalizer(st, renderer, clock, baseLogger.With("component", "finalizer"))

	if cfg.Notifications.Telegram.Enabled() {
		a.notifier = telegram.NewNotifier(cfg.Notifications.Telegram)
	}

	if cfg.Scheduler.Interval > 0 {
		a.scheduler = usecase.NewScheduler(
			scheduler.NewIntervalScheduler(cfg.Scheduler.Interval),
			a.RunOnce,
			baseLogger.With("component", "scheduler"),
		)
	}

	return a, nil
}

func openLedger(ctx context.Context, cfg config.LedgerConfig, logger *slog.Logger) ports.Ledger {
	ledger, err := storage.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		logger.Warn("ledger unavailable, continuing without it", "driver", cfg.Driver, "error", err)
		return nil
	}
	if err := ledger.Init(ctx); err != nil {
		logger.Warn("ledger init failed, continuing without it", "driver", cfg.Driver, "error", err)
		_ = ledger.Close()
		return nil
	}
	logger.Info("ledger enabled", "driver", cfg.Driver)
	return ledger
}

// Run executes a single crawl, or repeats it every scheduler.interval until ctx
// is cancelled. Only the single-run mode reports crawl errors.
func (a *Application) Run(ctx context.Context) error {
	if a.scheduler == nil {
		return a.RunOnce(ctx, time.Now())
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Interval)
	a.scheduler.Wait()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	return a.scheduler.Stop(stopCtx)
}

// RunOnce crawls, finalizes the store whatever the outcome and sends the digest
// after an uninterrupted run. A panic in the crawl is recovered into an error
// after a best-effort finalize.
func (a *Application) RunOnce(ctx context.Context, trigger time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("crawl panicked", "panic", r, "stack", string(debug.Stack()))
			_ = a.finalizer.Finalize(ctx, "panic")
			err = fmt.Errorf("crawl panicked: %v", r)
		}
	}()

	a.logger.Info("crawl started", "trigger", trigger, "url", a.cfg.Source.StartURL, "max_pages", a.cfg.Source.PageLimit())

	_, outcome, err := a.crawler.Run(ctx, a.cfg.Source.StartURL, a.cfg.Source.PageLimit())
	if err != nil {
		_ = a.finalizer.Finalize(ctx, "error")
		return fmt.Errorf("crawl: %w", err)
	}

	// Write failures are logged by the finalizer and do not fail the run.
	_ = a.finalizer.Finalize(ctx, string(outcome))

	if outcome != usecase.OutcomeInterrupted {
		a.notify(ctx)
	}
	return nil
}

func (a *Application) notify(ctx context.Context) {
	if a.notifier == nil {
		return
	}
	digest := usecase.BuildDigest(a.crawler.Stats().Added, a.cfg.Notifications.Telegram.MinScore)
	if digest == "" {
		return
	}
	if err := a.notifier.PublishDigest(ctx, digest); err != nil {
		a.logger.Warn("digest not delivered", "error", err)
	}
}

// Close releases the ledger connection.
func (a *Application) Close() error {
	if a.ledger == nil {
		return nil
	}
	return a.ledger.Close()
}
