package usecase

import (
	"fmt"
	"strings"

	"PaperHarvester/internal/domain"
)

// BuildDigest formats the notification for a run: the count of new entries and
// those scoring at least minScore. Returns "" when nothing was added.
func BuildDigest(added []domain.Entry, minScore int) string {
	if len(added) == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d new papers harvested\n", len(added))

	highlighted := 0
	for _, e := range added {
		if e.Score < minScore || e.Score == 0 {
			continue
		}
		if highlighted == 0 {
			fmt.Fprintf(&sb, "\nScore %d and above:\n", minScore)
		}
		highlighted++
		fmt.Fprintf(&sb, "\n- %s\nScore: %d/5\n%s\n", e.Title, e.Score, e.ID)
	}
	if highlighted == 0 {
		fmt.Fprintf(&sb, "\nNo paper scored %d or higher.\n", minScore)
	}
	return sb.String()
}
