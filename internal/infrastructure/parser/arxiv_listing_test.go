package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"PaperHarvester/internal/domain"
)

const listingPage = "https://arxiv.org/list/cs.RO/recent?show=2"

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func dt(id string) string {
	return `<dt>
	  <a name="item1">[1]</a>
	  <a href="/abs/` + id + `" title="Abstract">arXiv:` + id + `</a>
	  [<a href="/pdf/` + id + `" title="Download PDF">pdf</a>,
	   <a href="https://arxiv.org/html/` + id + `v1" title="View HTML">html</a>]
	</dt>`
}

func dd(title string) string {
	return `<dd><div class="meta">
	  <div class="list-title mathjax"><span class="descriptor">Title:</span> ` + title + `</div>
	  <div class="list-authors"><span class="descriptor">Authors:</span> <a href="/a/1">Ada Lovelace</a>, <a href="/a/2">Alan Turing</a></div>
	  <div class="list-subjects"><span class="descriptor">Subjects:</span> Robotics (cs.RO)</div>
	</div></dd>`
}

func TestParseListingExtractsItems(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<dl id="articles">` + dt("2511.00001") + dd("Legged&nbsp;Locomotion   at Scale") + `
	  <dt><a href="/abs/2511.00002" title="Abstract">arXiv:2511.00002</a></dt>
	  <dd><div class="meta">
	    <div class="list-title mathjax"><span class="descriptor">Title:</span> No HTML rendition</div>
	    <div class="list-comments mathjax"><span class="descriptor">Comments:</span>
	      8 pages. Code: <a href="https://github.com/lab/walker">https://github.com/lab/walker</a>,
	      mirror <a href="https://github.com/lab/walker">https://github.com/lab/walker</a>;
	    </div>
	  </div></dd>
	</dl>
	<a href="/list/cs.RO/recent?skip=2&amp;show=2">next &gt;</a>
	</body></html>`

	listing, err := NewArxivListing().ParseListing(mustDoc(t, html), listingPage)
	if err != nil {
		t.Fatalf("ParseListing returned error: %v", err)
	}

	if len(listing.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(listing.Items))
	}
	if listing.Truncated() {
		t.Fatalf("balanced listing reported as truncated")
	}

	first := listing.Items[0]
	if first.DetailURL != "https://arxiv.org/html/2511.00001v1" {
		t.Fatalf("unexpected detail url %q", first.DetailURL)
	}
	if first.AbstractURL != "https://arxiv.org/abs/2511.00001" {
		t.Fatalf("unexpected abstract url %q", first.AbstractURL)
	}
	if first.PDFURL != "https://arxiv.org/pdf/2511.00001" {
		t.Fatalf("unexpected pdf url %q", first.PDFURL)
	}
	if first.Title != "Legged Locomotion at Scale" {
		t.Fatalf("title not cleaned: %q", first.Title)
	}
	if first.Authors != "Ada Lovelace, Alan Turing" {
		t.Fatalf("unexpected authors %q", first.Authors)
	}
	if first.Subjects != "Robotics (cs.RO)" {
		t.Fatalf("unexpected subjects %q", first.Subjects)
	}
	if first.Comment != "" || first.CodeLinks != nil {
		t.Fatalf("expected empty comment and no code links, got %q %v", first.Comment, first.CodeLinks)
	}

	second := listing.Items[1]
	if second.DetailURL != "" {
		t.Fatalf("expected empty detail url, got %q", second.DetailURL)
	}
	if second.Authors != domain.PlaceholderAuthors || second.Subjects != domain.PlaceholderSubjects {
		t.Fatalf("missing fields should use placeholders: %+v", second)
	}
	if !reflect.DeepEqual(second.CodeLinks, []string{"https://github.com/lab/walker"}) {
		t.Fatalf("code links not deduplicated: %v", second.CodeLinks)
	}
	if second.Comment != "8 pages. Code: mirror" {
		t.Fatalf("comment not stripped of urls: %q", second.Comment)
	}

	if listing.NextURL != "https://arxiv.org/list/cs.RO/recent?skip=2&show=2" {
		t.Fatalf("unexpected next url %q", listing.NextURL)
	}
}

func TestParseListingTruncatesUnbalancedBlocks(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString(`<dl id="articles">`)
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		b.WriteString(dt("2511.0000" + id))
	}
	for _, title := range []string{"A", "B", "C", "D"} {
		b.WriteString(dd(title))
	}
	b.WriteString(`</dl>`)

	listing, err := NewArxivListing().ParseListing(mustDoc(t, b.String()), listingPage)
	if err != nil {
		t.Fatalf("ParseListing returned error: %v", err)
	}

	if len(listing.Items) != 4 {
		t.Fatalf("expected 4 items after truncation, got %d", len(listing.Items))
	}
	if !listing.Truncated() || listing.LinkBlocks != 5 || listing.MetaBlocks != 4 {
		t.Fatalf("raw counts not reported: %+v", listing)
	}
	if listing.Items[3].Title != "D" || listing.Items[3].DetailURL != "https://arxiv.org/html/2511.00004v1" {
		t.Fatalf("pairs misaligned: %+v", listing.Items[3])
	}
	if listing.NextURL != "" {
		t.Fatalf("expected no next url, got %q", listing.NextURL)
	}
}

func TestParseListingMissingMetaBlock(t *testing.T) {
	t.Parallel()

	html := `<dl id="articles">` + dt("2511.00001") + `<dd><p>withdrawn</p></dd></dl>`

	listing, err := NewArxivListing().ParseListing(mustDoc(t, html), listingPage)
	if err != nil {
		t.Fatalf("ParseListing returned error: %v", err)
	}
	if len(listing.Items) != 1 || listing.Items[0].HasMeta {
		t.Fatalf("expected one item without metadata, got %+v", listing.Items)
	}
}

func TestParseListingRequiresArticleList(t *testing.T) {
	t.Parallel()

	if _, err := NewArxivListing().ParseListing(mustDoc(t, `<html><body>maintenance</body></html>`), listingPage); err == nil {
		t.Fatalf("expected error for page without article list")
	}
}

func TestFindNextURLNeedsArrow(t *testing.T) {
	t.Parallel()

	html := `<dl id="articles"></dl><a href="/next-steps">Next steps</a><a href="?skip=50">Next 50 &gt;&gt;</a>`
	listing, err := NewArxivListing().ParseListing(mustDoc(t, html), listingPage)
	if err != nil {
		t.Fatalf("ParseListing returned error: %v", err)
	}
	if listing.NextURL != "https://arxiv.org/list/cs.RO/recent?skip=50" {
		t.Fatalf("unexpected next url %q", listing.NextURL)
	}
}
