package parser

import (
	"context"
	"fmt"
	"log/slog"

	"PaperHarvester/internal/ports"
	"PaperHarvester/internal/scanner"
)

// StrategySource implements ports.ListingSource via a registered scanner strategy.
type StrategySource struct {
	fetcher  ports.PageFetcher
	strategy scanner.Scanner
	logger   *slog.Logger
}

var _ ports.ListingSource = (*StrategySource)(nil)

// NewStrategySource resolves the named scanner from the registry and pairs it
// with the fetcher.
func NewStrategySource(reg *scanner.Registry, name string, fetcher ports.PageFetcher, log *slog.Logger) (*StrategySource, error) {
	if reg == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}
	strategy, err := reg.Resolve(name)
	if err != nil {
		return nil, err
	}
	return &StrategySource{
		fetcher:  fetcher,
		strategy: strategy,
		logger:   log,
	}, nil
}

// Listing downloads pageURL and parses it with the configured scanner.
func (s *StrategySource) Listing(ctx context.Context, pageURL string) (scanner.Listing, error) {
	doc, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return scanner.Listing{}, fmt.Errorf("fetch listing %s: %w", pageURL, err)
	}

	base := pageURL
	if doc.Url != nil {
		base = doc.Url.String()
	}

	listing, err := s.strategy.ParseListing(doc, base)
	if err != nil {
		return scanner.Listing{}, fmt.Errorf("scanner %s: %w", s.strategy.Name(), err)
	}

	s.debug("listing parsed", "url", base, "items", len(listing.Items), "next", listing.NextURL != "")
	return listing, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
