package scanner

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Item is one listing row: link info plus its metadata block.
type Item struct {
	// DetailURL is the absolute HTML full-text link, the canonical identifier.
	// Empty when the listing offers no HTML rendition.
	DetailURL   string
	AbstractURL string
	PDFURL      string
	Title       string
	Authors     string
	Subjects    string
	Comment     string
	CodeLinks   []string
	// HasMeta is false when the metadata block is missing entirely.
	HasMeta bool
}

// Listing is a parsed listing page.
type Listing struct {
	Items []Item
	// LinkBlocks and MetaBlocks are the raw counts before truncation.
	LinkBlocks int
	MetaBlocks int
	// NextURL is the absolute "next page" link, empty when the source is exhausted.
	NextURL string
}

// Truncated reports whether link and metadata blocks had to be cut to a common length.
func (l Listing) Truncated() bool {
	return l.LinkBlocks != l.MetaBlocks
}

// Scanner parses listing pages of one source (arXiv, etc.).
type Scanner interface {
	Name() string
	ParseListing(doc *goquery.Document, pageURL string) (Listing, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
