package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchSendsHeadersAndParses(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "harvester-test" {
			http.Error(w, "bad agent", http.StatusForbidden)
			return
		}
		if !strings.Contains(r.Header.Get("Accept"), "text/html") || r.Header.Get("Accept-Language") != "en-US" {
			http.Error(w, "bad accept", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><h1>Listing</h1></body></html>`))
	}))
	defer server.Close()

	f := New(server.Client(), Options{UserAgent: "harvester-test", AcceptLanguage: "en-US"})
	doc, err := f.Fetch(context.Background(), server.URL+"/list/cs.RO/recent")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := doc.Find("h1").Text(); got != "Listing" {
		t.Fatalf("unexpected heading %q", got)
	}
	if doc.Url == nil || doc.Url.Path != "/list/cs.RO/recent" {
		t.Fatalf("final url not recorded: %v", doc.Url)
	}
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	f := New(server.Client(), Options{})
	if _, err := f.Fetch(context.Background(), server.URL); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	f := New(nil, Options{})
	if _, err := f.Fetch(context.Background(), "/relative/only"); err == nil {
		t.Fatalf("expected error for relative url")
	}
}

func TestFetchDecodesLatin1(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<p>Sch\xf6lkopf</p>"))
	}))
	defer server.Close()

	f := New(server.Client(), Options{})
	doc, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := doc.Find("p").Text(); got != "Schölkopf" {
		t.Fatalf("unexpected decoded text %q", got)
	}
}

func TestFetchBytesCapsBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer server.Close()

	f := New(server.Client(), Options{MaxBodyBytes: 10})
	body, err := f.FetchBytes(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetch bytes: %v", err)
	}
	if len(body) != 10 {
		t.Fatalf("expected capped body of 10 bytes, got %d", len(body))
	}
}

func TestPaceStopsOnCancel(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>ok</p>"))
	}))
	defer server.Close()

	f := New(server.Client(), Options{RequestInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		_, _ = f.Fetch(ctx, server.URL)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("pacing delay ignored cancellation")
	}
}
