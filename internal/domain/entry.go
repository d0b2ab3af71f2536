package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// DateKeyLayout formats the calendar day an entry was harvested on.
const DateKeyLayout = "2006-01-02"

// TimestampLayout formats Entry.HarvestedAt.
const TimestampLayout = "2006-01-02 15:04:05"

// Placeholders stored instead of empty fields so reports render uniformly.
const (
	PlaceholderAbstract     = "Abstract not found"
	PlaceholderIntroduction = "Introduction not found"
	PlaceholderTitle        = "Unknown title"
	PlaceholderAuthors      = "Unknown authors"
	PlaceholderSubjects     = "Unknown subjects"
)

// Entry is one harvested paper. ID (the canonical HTML detail URL) is the
// deduplication key across the whole archive.
type Entry struct {
	HarvestedAt  string   `json:"crawl_datetime"`
	Title        string   `json:"title"`
	Authors      string   `json:"authors"`
	Subjects     string   `json:"subjects"`
	Comment      string   `json:"comment"`
	PDFLink      string   `json:"pdf_link"`
	CodeLinks    []string `json:"code"`
	AbstractLink string   `json:"arxiv_abs_link"`
	ID           string   `json:"arxiv_html_link"`
	Abstract     string   `json:"abstract"`
	Introduction string   `json:"introduction"`
	Summary      string   `json:"llm_summary"`
	Score        int      `json:"llm_score"`
	SummaryError string   `json:"llm_error"`

	// Extra holds keys written by other tools; they survive a rewrite.
	Extra map[string]json.RawMessage `json:"-"`
}

// Archive maps a date key to the entries harvested that day, in crawl order.
type Archive map[string][]Entry

// Total counts entries across all buckets.
func (a Archive) Total() int {
	total := 0
	for _, entries := range a {
		total += len(entries)
	}
	return total
}

// Contains scans every bucket for the identifier.
func (a Archive) Contains(id string) bool {
	for _, entries := range a {
		for _, e := range entries {
			if e.ID == id {
				return true
			}
		}
	}
	return false
}

// DateKeys returns bucket keys, newest first.
func (a Archive) DateKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}

// Clone deep-copies the archive so callers can read it without sharing buckets.
func (a Archive) Clone() Archive {
	out := make(Archive, len(a))
	for k, entries := range a {
		cp := make([]Entry, len(entries))
		for i, e := range entries {
			cp[i] = e
			if e.CodeLinks != nil {
				cp[i].CodeLinks = append([]string(nil), e.CodeLinks...)
			}
			if e.Extra != nil {
				cp[i].Extra = make(map[string]json.RawMessage, len(e.Extra))
				for k, v := range e.Extra {
					cp[i].Extra[k] = v
				}
			}
		}
		out[k] = cp
	}
	return out
}

// DateKey returns the bucket key for t.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// Summary is the summarizer result. Score is 1..5 when a marker was found, else 0.
// On failure Text is empty and Err carries the cause.
type Summary struct {
	Text  string
	Score int
	Err   string
}
