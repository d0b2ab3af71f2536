package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"PaperHarvester/internal/domain"
	"PaperHarvester/internal/scanner"
)

var (
	whitespaceExpr   = regexp.MustCompile(`\s+`)
	urlExpr          = regexp.MustCompile(`https?://\S+|www\.\S+`)
	trailingSepsExpr = regexp.MustCompile(`[,; ]+$`)
	pdfExpr          = regexp.MustCompile(`(?i)pdf`)
)

// ArxivListing parses arXiv "list" pages: a dl#articles of dt (links) / dd (metadata) pairs.
type ArxivListing struct{}

var _ scanner.Scanner = ArxivListing{}

// NewArxivListing returns the arXiv listing strategy.
func NewArxivListing() ArxivListing {
	return ArxivListing{}
}

// Name identifies the strategy inside the registry.
func (ArxivListing) Name() string {
	return "arxiv"
}

// ParseListing extracts items in listing order and the next-page link. When dt and
// dd counts differ both are cut to the shorter length; the raw counts are reported.
func (ArxivListing) ParseListing(doc *goquery.Document, pageURL string) (scanner.Listing, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return scanner.Listing{}, fmt.Errorf("invalid page url %s: %w", pageURL, err)
	}

	articles := doc.Find("dl#articles").First()
	if articles.Length() == 0 {
		articles = doc.Find("dl").First()
	}
	if articles.Length() == 0 {
		return scanner.Listing{}, fmt.Errorf("no article list on %s", pageURL)
	}

	dts := articles.ChildrenFiltered("dt")
	dds := articles.ChildrenFiltered("dd")
	listing := scanner.Listing{
		LinkBlocks: dts.Length(),
		MetaBlocks: dds.Length(),
		NextURL:    findNextURL(doc, base),
	}

	n := min(dts.Length(), dds.Length())
	listing.Items = make([]scanner.Item, 0, n)
	for i := 0; i < n; i++ {
		listing.Items = append(listing.Items, parseItem(dts.Eq(i), dds.Eq(i), base))
	}
	return listing, nil
}

func parseItem(dt, dd *goquery.Selection, base *url.URL) scanner.Item {
	item := scanner.Item{
		DetailURL:   resolveAttr(dt.Find(`a[title="View HTML"]`).First(), base),
		AbstractURL: resolveAttr(dt.Find(`a[title="Abstract"]`).First(), base),
		PDFURL:      extractPDFLink(dt, base),
	}

	meta := dd.Find("div.meta").First()
	if meta.Length() == 0 {
		return item
	}
	item.HasMeta = true

	item.Title = fieldText(meta.Find("div.list-title").First(), "Title:", domain.PlaceholderTitle)
	item.Authors = fieldText(meta.Find("div.list-authors").First(), "Authors:", domain.PlaceholderAuthors)
	item.Subjects = fieldText(meta.Find("div.list-subjects").First(), "Subjects:", domain.PlaceholderSubjects)
	item.Comment, item.CodeLinks = commentAndCode(meta.Find("div.list-comments").First(), base)
	return item
}

func fieldText(sel *goquery.Selection, prefix, placeholder string) string {
	if sel.Length() == 0 {
		return placeholder
	}
	text := cleanText(sel.Text())
	text = strings.TrimSpace(strings.TrimPrefix(text, prefix))
	if text == "" {
		return placeholder
	}
	return text
}

// commentAndCode returns the comment with URLs stripped and the distinct links it
// carried, in document order.
func commentAndCode(sel *goquery.Selection, base *url.URL) (string, []string) {
	if sel.Length() == 0 {
		return "", nil
	}

	var links []string
	seen := map[string]struct{}{}
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if !strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			return
		}
		abs := resolve(href, base)
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})

	text := cleanText(sel.Text())
	text = strings.TrimSpace(strings.TrimPrefix(text, "Comments:"))
	text = strings.TrimSpace(urlExpr.ReplaceAllString(text, ""))
	text = trailingSepsExpr.ReplaceAllString(text, "")
	return cleanText(text), links
}

func extractPDFLink(dt *goquery.Selection, base *url.URL) string {
	var link string
	dt.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if !pdfExpr.MatchString(href) {
			return true
		}
		if strings.HasPrefix(href, "/") || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			link = resolve(href, base)
			return false
		}
		return true
	})
	return link
}

func findNextURL(doc *goquery.Document, base *url.URL) string {
	var next string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.ToLower(a.Text())
		if strings.Contains(text, "next") && strings.Contains(text, ">") {
			next = resolveAttr(a, base)
			return false
		}
		return true
	})
	return next
}

func resolveAttr(a *goquery.Selection, base *url.URL) string {
	href, ok := a.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	return resolve(strings.TrimSpace(href), base)
}

func resolve(href string, base *url.URL) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(s, " "))
}
