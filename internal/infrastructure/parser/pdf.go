package parser

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"PaperHarvester/internal/ports"
)

const (
	pdfIntroPages    = 4
	pdfIntroMaxRunes = 6000
)

var (
	introHeadingExpr = regexp.MustCompile(`(?:^|\s)(?:1\.?|I\.)?\s*(?:INTRODUCTION|Introduction)\s`)
	nextHeadingExpr  = regexp.MustCompile(`(?:^|\s)(?:2\.?|II\.)\s+[A-Z][A-Za-z-]+`)
)

// PDFIntroduction recovers an introduction from the paper PDF when the HTML
// rendition has none.
type PDFIntroduction struct {
	fetcher ports.PageFetcher
}

var _ ports.IntroductionFallback = (*PDFIntroduction)(nil)

// NewPDFIntroduction downloads PDFs through fetcher.
func NewPDFIntroduction(fetcher ports.PageFetcher) *PDFIntroduction {
	return &PDFIntroduction{fetcher: fetcher}
}

// Introduction reads the first pages of the PDF and returns the text between the
// introduction heading and the next numbered section.
func (p *PDFIntroduction) Introduction(ctx context.Context, pdfURL string) (string, error) {
	data, err := p.fetcher.FetchBytes(ctx, pdfURL)
	if err != nil {
		return "", err
	}

	text, err := pdfText(data, pdfIntroPages)
	if err != nil {
		return "", err
	}

	intro, ok := sliceIntroduction(text)
	if !ok {
		return "", fmt.Errorf("no introduction heading in %s", pdfURL)
	}
	return intro, nil
}

func pdfText(data []byte, maxPages int) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	var sb strings.Builder
	pages := min(reader.NumPage(), maxPages)
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// sliceIntroduction cuts whitespace-normalised text from the introduction
// heading up to the next numbered heading, capped at pdfIntroMaxRunes.
func sliceIntroduction(text string) (string, bool) {
	text = strings.Join(strings.Fields(text), " ")

	loc := introHeadingExpr.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	body := text[loc[1]:]

	if end := nextHeadingExpr.FindStringIndex(body); end != nil {
		body = body[:end[0]]
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", false
	}

	if runes := []rune(body); len(runes) > pdfIntroMaxRunes {
		body = strings.TrimSpace(string(runes[:pdfIntroMaxRunes]))
	}
	return body, true
}
