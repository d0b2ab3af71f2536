package report

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"PaperHarvester/internal/domain"
	"PaperHarvester/internal/fileio"
	"PaperHarvester/internal/ports"
)

const tableHeader = `| Title | Author | Comment | PDF | Code | Score | LLM Summary |
|-------|--------|---------|-----|------|-------|-------------|`

// Markdown renders the recent part of the archive as a Markdown page: today's
// table expanded, earlier days folded into <details> blocks.
type Markdown struct {
	path       string
	title      string
	recentDays int
	logger     *slog.Logger
}

var _ ports.Renderer = (*Markdown)(nil)

// NewMarkdown writes reports to path. recentDays below 1 means 3.
func NewMarkdown(path, title string, recentDays int, logger *slog.Logger) *Markdown {
	if recentDays < 1 {
		recentDays = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Markdown{path: path, title: title, recentDays: recentDays, logger: logger}
}

// Render rewrites the report. When none of the recent days has entries the
// previous report is left untouched.
func (m *Markdown) Render(archive domain.Archive, now time.Time) error {
	days := recentDays(archive, now, m.recentDays)
	if len(days) == 0 {
		m.logger.Warn("no recent entries, report left untouched", "path", m.path, "days", m.recentDays)
		return nil
	}

	content := m.build(archive, days, domain.DateKey(now))
	if err := fileio.WriteFileAtomic(m.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", m.path, err)
	}
	m.logger.Info("report written", "path", m.path, "days", len(days))
	return nil
}

func (m *Markdown) build(archive domain.Archive, days []string, today string) string {
	total := 0
	for _, day := range days {
		total += len(archive[day])
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s %s (%d papers)\n\n", today, m.title, total)
	fmt.Fprintf(&sb, "> Showing the last %d days. Today's papers are expanded, click a date to expand earlier days.\n", m.recentDays)
	sb.WriteString("> Score: LLM-rated relevance from 1 to 5, more ★ means more relevant.\n\n")

	for i, day := range days {
		if i > 0 {
			sb.WriteString("\n")
		}
		heading := fmt.Sprintf("%s (%d papers)", day, len(archive[day]))
		if day == today {
			fmt.Fprintf(&sb, "## %s\n\n%s\n", heading, tableHeader)
			writeRows(&sb, archive[day])
			continue
		}
		fmt.Fprintf(&sb, "<details>\n<summary>## %s</summary>\n\n%s\n", heading, tableHeader)
		writeRows(&sb, archive[day])
		sb.WriteString("\n</details>\n")
	}
	return sb.String()
}

func writeRows(sb *strings.Builder, entries []domain.Entry) {
	for _, e := range entries {
		fmt.Fprintf(sb, "| %s | %s | %s | %s | %s | %s | %s |\n",
			escapeCell(strings.Join(strings.Fields(e.Title), " ")),
			escapeCell(firstAuthor(e.Authors)),
			collapsible("detail", e.Comment, ""),
			link("PDF", e.PDFLink),
			codeLinks(e.CodeLinks),
			stars(e.Score),
			collapsible("summary", e.Summary, "-"),
		)
	}
}

// recentDays lists the last n calendar days ending at now that have entries,
// newest first.
func recentDays(archive domain.Archive, now time.Time, n int) []string {
	var days []string
	for i := 0; i < n; i++ {
		key := domain.DateKey(now.AddDate(0, 0, -i))
		if len(archive[key]) > 0 {
			days = append(days, key)
		}
	}
	return days
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br>")
}

func firstAuthor(authors string) string {
	first := strings.TrimSpace(strings.Split(authors, ",")[0])
	if first == "" {
		return domain.PlaceholderAuthors
	}
	return first
}

func collapsible(label, text, empty string) string {
	if strings.TrimSpace(text) == "" {
		return empty
	}
	return fmt.Sprintf("<details><summary>%s</summary>%s</details>", label, escapeCell(text))
}

func link(label, href string) string {
	if href == "" {
		return "-"
	}
	return fmt.Sprintf("[%s](%s)", label, href)
}

func codeLinks(links []string) string {
	parts := make([]string, 0, len(links))
	for _, l := range links {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, fmt.Sprintf("[code%d](%s)", len(parts)+1, l))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "<br>")
}

func stars(score int) string {
	if score < 1 || score > 5 {
		return "-"
	}
	return strings.Repeat("★", score) + strings.Repeat("☆", 5-score)
}
