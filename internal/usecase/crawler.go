package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"PaperHarvester/internal/domain"
	"PaperHarvester/internal/ports"
	"PaperHarvester/internal/scanner"
	"PaperHarvester/internal/store"
)

// Outcome names the state a crawl run stopped in.
type Outcome string

const (
	OutcomeMaxPages    Outcome = "max-pages-reached"
	OutcomeFetchFailed Outcome = "fetch-failed"
	OutcomeNoNextLink  Outcome = "no-next-link"
	OutcomeInterrupted Outcome = "interrupted"
)

// Stats summarises one run. Added holds the new entries in crawl order.
type Stats struct {
	Pages   int
	New     int
	Skipped int
	Failed  int
	Added   []domain.Entry
}

// CrawlerDeps wires all driven adapters into the crawl loop. Fallback and
// Cursor are optional.
type CrawlerDeps struct {
	Source     ports.ListingSource
	Fetcher    ports.PageFetcher
	Extractor  ports.FieldExtractor
	Summarizer ports.Summarizer
	Fallback   ports.IntroductionFallback
	Store      *store.Store
	Cursor     *store.CursorFile
	Resume     bool
	Clock      func() time.Time
	Logger     *slog.Logger
}

// Crawler walks listing pages, harvests unseen items and flushes after every page.
type Crawler struct {
	source     ports.ListingSource
	fetcher    ports.PageFetcher
	extractor  ports.FieldExtractor
	summarizer ports.Summarizer
	fallback   ports.IntroductionFallback
	store      *store.Store
	cursor     *store.CursorFile
	resume     bool
	clock      func() time.Time
	logger     *slog.Logger

	stats Stats
}

// NewCrawler constructs the crawl loop.
func NewCrawler(deps CrawlerDeps) *Crawler {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Crawler{
		source:     deps.Source,
		fetcher:    deps.Fetcher,
		extractor:  deps.Extractor,
		summarizer: deps.Summarizer,
		fallback:   deps.Fallback,
		store:      deps.Store,
		cursor:     deps.Cursor,
		resume:     deps.Resume,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
}

// Stats returns the counters of the last run.
func (c *Crawler) Stats() Stats {
	return c.stats
}

type itemResult int

const (
	itemAdded itemResult = iota
	itemSeen
	itemFailed
	itemInterrupted
)

// Run loads the store (unless it still holds unflushed entries) and crawls from startURL (or the saved cursor) until the
// listing is exhausted, maxPages pages were processed (0 = unbounded), a listing
// fetch fails or ctx is cancelled. On interruption nothing is flushed here; the
// caller finalizes the store.
func (c *Crawler) Run(ctx context.Context, startURL string, maxPages int) (domain.Archive, Outcome, error) {
	if c.source == nil || c.fetcher == nil || c.extractor == nil || c.summarizer == nil || c.store == nil {
		return nil, "", fmt.Errorf("crawler is not fully configured")
	}
	c.stats = Stats{}

	if n := c.store.Unsaved(); n > 0 {
		c.logger.Warn("previous flush failed, keeping in-memory archive", "unsaved", n)
	} else {
		c.store.Load(ctx)
	}
	pageURL, page := c.startPoint(startURL)

	outcome := c.loop(ctx, startURL, pageURL, page, maxPages)

	c.logger.Info("crawl finished",
		"outcome", outcome,
		"pages", c.stats.Pages,
		"new", c.stats.New,
		"skipped", c.stats.Skipped,
		"failed", c.stats.Failed,
		"stored", c.store.Len())
	return c.store.Snapshot(), outcome, nil
}

func (c *Crawler) loop(ctx context.Context, startURL, pageURL string, page, maxPages int) Outcome {
	for {
		if ctx.Err() != nil {
			return OutcomeInterrupted
		}
		if maxPages > 0 && page > maxPages {
			c.clearCursor()
			return OutcomeMaxPages
		}

		log := c.logger.With("page", page, "url", pageURL)
		log.Info("fetching listing page")

		listing, err := c.source.Listing(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeInterrupted
			}
			log.Error("listing fetch failed, stopping", "error", err)
			return OutcomeFetchFailed
		}
		if listing.Truncated() {
			log.Warn("link and metadata blocks differ, truncating",
				"links", listing.LinkBlocks, "meta", listing.MetaBlocks, "kept", len(listing.Items))
		}
		c.stats.Pages++

		for i, item := range listing.Items {
			if c.processItem(ctx, log.With("item", i+1), item) == itemInterrupted {
				return OutcomeInterrupted
			}
		}

		if err := c.store.Flush(ctx); err != nil {
			log.Error("archive flush failed", "error", err)
		}

		if listing.NextURL == "" {
			log.Info("no next page link, source exhausted")
			c.clearCursor()
			return OutcomeNoNextLink
		}

		page++
		pageURL = listing.NextURL
		c.saveCursor(startURL, pageURL, page)
	}
}

func (c *Crawler) processItem(ctx context.Context, log *slog.Logger, item scanner.Item) itemResult {
	if ctx.Err() != nil {
		return itemInterrupted
	}

	id := item.DetailURL
	if id == "" {
		log.Warn("item has no HTML link, skipping", "abs", item.AbstractURL)
		c.stats.Failed++
		return itemFailed
	}
	if !item.HasMeta {
		log.Warn("item has no metadata block, skipping", "id", id)
		c.stats.Failed++
		return itemFailed
	}
	if c.store.Contains(id) {
		log.Debug("already harvested", "id", id)
		c.stats.Skipped++
		return itemSeen
	}

	doc, err := c.fetcher.Fetch(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return itemInterrupted
		}
		log.Warn("detail fetch failed, skipping", "id", id, "error", err)
		c.stats.Failed++
		return itemFailed
	}

	abstract := c.extractor.ExtractAbstract(doc)
	intro := c.extractor.ExtractIntroduction(doc)
	if intro == domain.PlaceholderIntroduction && c.fallback != nil && item.PDFURL != "" {
		if text, err := c.fallback.Introduction(ctx, item.PDFURL); err != nil {
			log.Debug("pdf introduction unavailable", "pdf", item.PDFURL, "error", err)
		} else {
			intro = text
		}
	}

	summary := c.summarizer.Summarize(ctx, item.Title, abstract, intro)
	if ctx.Err() != nil {
		log.Info("interrupted during summary, dropping in-flight item", "id", id)
		return itemInterrupted
	}
	if summary.Err != "" {
		log.Warn("summary failed, storing entry anyway", "id", id, "error", summary.Err)
	}

	now := c.clock()
	entry := domain.Entry{
		HarvestedAt:  now.Format(domain.TimestampLayout),
		Title:        item.Title,
		Authors:      item.Authors,
		Subjects:     item.Subjects,
		Comment:      item.Comment,
		PDFLink:      item.PDFURL,
		CodeLinks:    item.CodeLinks,
		AbstractLink: item.AbstractURL,
		ID:           id,
		Abstract:     abstract,
		Introduction: intro,
		Summary:      summary.Text,
		Score:        summary.Score,
		SummaryError: summary.Err,
	}
	c.store.Append(domain.DateKey(now), entry)
	c.stats.New++
	c.stats.Added = append(c.stats.Added, entry)
	log.Info("entry harvested", "id", id, "score", entry.Score)
	return itemAdded
}

func (c *Crawler) startPoint(startURL string) (string, int) {
	if !c.resume {
		return startURL, 1
	}
	cur, ok, err := c.cursor.Load()
	if err != nil {
		c.logger.Warn("resume cursor unreadable, starting over", "error", err)
		return startURL, 1
	}
	if !ok || cur.StartURL != startURL {
		return startURL, 1
	}
	c.logger.Info("resuming crawl", "page", cur.Page, "url", cur.NextURL)
	return cur.NextURL, cur.Page
}

func (c *Crawler) saveCursor(startURL, nextURL string, page int) {
	err := c.cursor.Save(store.Cursor{
		StartURL:  startURL,
		NextURL:   nextURL,
		Page:      page,
		UpdatedAt: c.clock().Format(domain.TimestampLayout),
	})
	if err != nil {
		c.logger.Warn("resume cursor not saved", "error", err)
	}
}

func (c *Crawler) clearCursor() {
	if err := c.cursor.Clear(); err != nil {
		c.logger.Warn("resume cursor not cleared", "error", err)
	}
}
