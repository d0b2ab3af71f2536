package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"PaperHarvester/internal/ports"
)

const acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"

// Options tunes request headers, limits and pacing.
type Options struct {
	Timeout         time.Duration
	RequestInterval time.Duration
	UserAgent       string
	AcceptLanguage  string
	MaxBodyBytes    int64
}

// HTTPFetcher downloads pages sequentially, pausing RequestInterval after each request.
type HTTPFetcher struct {
	client *http.Client
	opts   Options
}

var _ ports.PageFetcher = (*HTTPFetcher)(nil)

// New wires an HTTP client; a nil client gets a transport with sane dial limits.
func New(client *http.Client, opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 20 << 20
	}
	if client == nil {
		transport := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
		client = &http.Client{Transport: transport, Timeout: opts.Timeout}
	}
	return &HTTPFetcher{client: client, opts: opts}
}

// Fetch returns the page decoded to UTF-8 and parsed; doc.Url holds the final URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, contentType, finalURL, err := f.get(ctx, pageURL, acceptHTML)
	if err != nil {
		return nil, err
	}

	utf8Body := decodeUTF8(body, contentType)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8Body))
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", pageURL, err)
	}
	doc.Url = finalURL
	return doc, nil
}

// FetchBytes returns the raw response body (PDFs and other binary payloads).
func (f *HTTPFetcher) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	body, _, _, err := f.get(ctx, rawURL, "*/*")
	return body, err
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL, accept string) ([]byte, string, *url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, "", nil, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", accept)
	if f.opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", f.opts.AcceptLanguage)
	}
	req.Header.Set("Connection", "keep-alive")

	defer f.pace(ctx)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", nil, fmt.Errorf("request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", nil, fmt.Errorf("request %s: unexpected status %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, "", nil, fmt.Errorf("read body %s: %w", rawURL, err)
	}
	return body, resp.Header.Get("Content-Type"), resp.Request.URL, nil
}

// pace blocks for the request interval unless ctx is cancelled first.
func (f *HTTPFetcher) pace(ctx context.Context) {
	if f.opts.RequestInterval <= 0 {
		return
	}
	timer := time.NewTimer(f.opts.RequestInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func decodeUTF8(data []byte, contentType string) []byte {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if utf8.Valid(data) {
			return data
		}
		return bytes.ToValidUTF8(data, []byte("�"))
	}
	return decoded
}
