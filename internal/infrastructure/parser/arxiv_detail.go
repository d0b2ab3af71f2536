package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"PaperHarvester/internal/domain"
	"PaperHarvester/internal/ports"
)

// ArxivDetail extracts sections from arXiv's LaTeXML HTML renditions.
type ArxivDetail struct{}

var _ ports.FieldExtractor = ArxivDetail{}

// NewArxivDetail returns the arXiv HTML field extractor.
func NewArxivDetail() ArxivDetail {
	return ArxivDetail{}
}

// ExtractAbstract returns the first abstract paragraph or the placeholder.
func (ArxivDetail) ExtractAbstract(doc *goquery.Document) string {
	container := doc.Find("div.ltx_abstract").First()
	if container.Length() == 0 {
		return domain.PlaceholderAbstract
	}
	text := cleanText(container.Find("p.ltx_p").First().Text())
	if text == "" {
		return domain.PlaceholderAbstract
	}
	return text
}

// ExtractIntroduction returns section S1 as blank-line separated blocks in source
// order; itemize lists become "n. text" lines. The document is not modified.
func (ArxivDetail) ExtractIntroduction(doc *goquery.Document) string {
	section := doc.Find("section#S1").First()
	if section.Length() == 0 {
		return domain.PlaceholderIntroduction
	}

	section = section.Clone()
	section.Find("div.ltx_pagination, button.sr-only").Remove()

	var blocks []string
	section.Find("div.ltx_para, ul.ltx_itemize").Each(func(_ int, s *goquery.Selection) {
		if s.Closest("li.ltx_item").Length() > 0 {
			return
		}
		if goquery.NodeName(s) == "ul" {
			blocks = append(blocks, listItems(s)...)
			return
		}
		own := s.Find("p.ltx_p").FilterFunction(func(_ int, p *goquery.Selection) bool {
			return p.Closest("li.ltx_item").Length() == 0
		})
		if text := cleanText(own.First().Text()); text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		return domain.PlaceholderIntroduction
	}
	return strings.Join(blocks, "\n\n")
}

func listItems(ul *goquery.Selection) []string {
	var items []string
	idx := 0
	ul.ChildrenFiltered("li.ltx_item").Each(func(_ int, li *goquery.Selection) {
		idx++
		p := li.Find("div.ltx_para p.ltx_p").First()
		if p.Length() == 0 {
			p = li.Find("p.ltx_p").First()
		}
		if text := cleanText(p.Text()); text != "" {
			items = append(items, fmt.Sprintf("%d. %s", idx, text))
		}
	})
	return items
}
