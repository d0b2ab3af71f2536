package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PaperHarvester/internal/config"
	"PaperHarvester/internal/domain"
	"PaperHarvester/internal/logging"
	"PaperHarvester/internal/scanner"
	"PaperHarvester/internal/store"
	"PaperHarvester/internal/usecase"
)

const listingHTML = `<html><body><dl id="articles">
<dt><a href="/abs/2511.00001" title="Abstract">arXiv:2511.00001</a>
  [<a href="/pdf/2511.00001" title="Download PDF">pdf</a>, <a href="/html/2511.00001v1" title="View HTML">html</a>]</dt>
<dd><div class="meta">
  <div class="list-title mathjax"><span class="descriptor">Title:</span> Learning to Walk</div>
  <div class="list-authors"><span class="descriptor">Authors:</span> Ada Lovelace, Alan Turing</div>
  <div class="list-subjects"><span class="descriptor">Subjects:</span> Robotics (cs.RO)</div>
</div></dd>
</dl></body></html>`

const detailHTML = `<html><body>
<div class="ltx_abstract"><p class="ltx_p">We teach robots to walk.</p></div>
<section id="S1"><div class="ltx_para"><p class="ltx_p">Walking is hard.</p></div></section>
</body></html>`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/list/cs.RO/recent", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, listingHTML)
	})
	mux.HandleFunc("/html/2511.00001v1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, detailHTML)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "Gait learning.\nScore: 5"}}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, srv *httptest.Server) config.Config {
	t.Helper()

	dir := t.TempDir()
	maxPages := 1
	return config.Config{
		Source: config.SourceConfig{Scanner: "arxiv", StartURL: srv.URL + "/list/cs.RO/recent", MaxPages: &maxPages},
		Fetch:  config.FetchConfig{Timeout: 5 * time.Second},
		Storage: config.StorageConfig{
			ArchivePath: filepath.Join(dir, "arxiv_papers.json"),
			CursorPath:  filepath.Join(dir, "arxiv_papers.cursor.json"),
		},
		Ledger: config.LedgerConfig{Driver: "sqlite", DSN: filepath.Join(dir, "ledger.db")},
		LLM: config.LLMConfig{
			Endpoint: srv.URL + "/v1/chat/completions",
			Model:    "gpt-4o-mini",
			APIKey:   "sk-test",
			Timeout:  5 * time.Second,
		},
		Report: config.ReportConfig{Path: filepath.Join(dir, "README.md"), Title: "digest", RecentDays: 3},
	}
}

func TestRunOnceHarvestsAndRenders(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	cfg := testConfig(t, srv)

	application, err := New(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = application.Close() })

	if err := application.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	raw, err := os.ReadFile(cfg.Storage.ArchivePath)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	var archive domain.Archive
	if err := json.Unmarshal(raw, &archive); err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if archive.Total() != 1 {
		t.Fatalf("expected 1 entry, got %d", archive.Total())
	}
	for _, entries := range archive {
		e := entries[0]
		if e.ID != srv.URL+"/html/2511.00001v1" || e.Score != 5 || e.Abstract != "We teach robots to walk." || e.Introduction != "Walking is hard." {
			t.Fatalf("unexpected entry %+v", e)
		}
	}

	md, err := os.ReadFile(cfg.Report.Path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(md), "Learning to Walk") || !strings.Contains(string(md), "★★★★★") {
		t.Fatalf("report missing entry:\n%s", md)
	}

	// Second run against the same listing must not duplicate anything.
	if err := application.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats := application.crawler.Stats(); stats.New != 0 || stats.Skipped != 1 {
		t.Fatalf("unexpected second run stats %+v", stats)
	}
}

type panickingSummarizer struct{}

func (panickingSummarizer) Summarize(context.Context, string, string, string) domain.Summary {
	panic("summarizer exploded")
}

type stubSource struct{ listing scanner.Listing }

func (s stubSource) Listing(context.Context, string) (scanner.Listing, error) { return s.listing, nil }

type stubFetcher struct{}

func (stubFetcher) Fetch(context.Context, string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(detailHTML))
}

func (stubFetcher) FetchBytes(context.Context, string) ([]byte, error) { return nil, nil }

type stubExtractor struct{}

func (stubExtractor) ExtractAbstract(*goquery.Document) string     { return "a" }
func (stubExtractor) ExtractIntroduction(*goquery.Document) string { return "i" }

func TestRunOnceRecoversPanicAndFinalizes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "archive.json")
	st := store.New(archivePath, nil, logging.Discard())
	seed := store.New(archivePath, nil, logging.Discard())
	seed.Append("2025-11-07", domain.Entry{ID: "kept", Title: "kept"})
	if err := seed.Flush(context.Background()); err != nil {
		t.Fatalf("seed archive: %v", err)
	}

	item := scanner.Item{DetailURL: "new", Title: "new", HasMeta: true}
	a := &Application{
		logger: logging.Discard(),
		crawler: usecase.NewCrawler(usecase.CrawlerDeps{
			Source:     stubSource{listing: scanner.Listing{Items: []scanner.Item{item}}},
			Fetcher:    stubFetcher{},
			Extractor:  stubExtractor{},
			Summarizer: panickingSummarizer{},
			Store:      st,
			Logger:     logging.Discard(),
		}),
		finalizer: usecase.NewFinalizer(st, nil, nil, logging.Discard()),
	}

	err := a.RunOnce(context.Background(), time.Now())
	if err == nil || !strings.Contains(err.Error(), "summarizer exploded") {
		t.Fatalf("expected recovered panic error, got %v", err)
	}

	reloaded := store.New(archivePath, nil, logging.Discard())
	reloaded.Load(context.Background())
	if !reloaded.Contains("kept") || reloaded.Contains("new") {
		t.Fatalf("best-effort flush should keep prior entries and drop the in-flight one")
	}
}

func TestNewRejectsUnknownScanner(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Source: config.SourceConfig{Scanner: "nope"}}
	if _, err := New(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatalf("expected error for unknown scanner")
	}
}
