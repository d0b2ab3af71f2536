package ports

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PaperHarvester/internal/domain"
	"PaperHarvester/internal/scanner"
)

// PageFetcher downloads listing and detail pages. Implementations enforce
// their own timeout and pacing.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*goquery.Document, error)
	FetchBytes(ctx context.Context, rawURL string) ([]byte, error)
}

// ListingSource yields parsed listing pages for the crawl loop.
type ListingSource interface {
	Listing(ctx context.Context, pageURL string) (scanner.Listing, error)
}

// FieldExtractor turns a detail page into plain-text sections. It never fails:
// missing structure yields the domain placeholders.
type FieldExtractor interface {
	ExtractAbstract(doc *goquery.Document) string
	ExtractIntroduction(doc *goquery.Document) string
}

// Summarizer produces a summary and relevance score. Failures are reported
// through Summary.Err, never as a returned error.
type Summarizer interface {
	Summarize(ctx context.Context, title, abstract, introduction string) domain.Summary
}

// Renderer formats the archive into the human-readable report.
type Renderer interface {
	Render(archive domain.Archive, now time.Time) error
}

// Ledger mirrors harvested entries into SQL storage.
type Ledger interface {
	Init(ctx context.Context) error
	Known(ctx context.Context, ids []string) (map[string]bool, error)
	Save(ctx context.Context, dateKey string, position int, entry domain.Entry) error
	Archive(ctx context.Context) (domain.Archive, error)
	Close() error
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when crawl runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
	Done() <-chan struct{}
}

// IntroductionFallback recovers an introduction from another rendition (the PDF)
// when the HTML page has none.
type IntroductionFallback interface {
	Introduction(ctx context.Context, pdfURL string) (string, error)
}
