package usecase

import (
	"strings"
	"testing"

	"PaperHarvester/internal/domain"
)

func TestBuildDigest(t *testing.T) {
	t.Parallel()

	if BuildDigest(nil, 4) != "" {
		t.Fatalf("expected empty digest without new entries")
	}

	added := []domain.Entry{
		{ID: "https://arxiv.org/html/1", Title: "Walker", Score: 5},
		{ID: "https://arxiv.org/html/2", Title: "Grasper", Score: 2},
		{ID: "https://arxiv.org/html/3", Title: "Failed", Score: 0},
	}
	digest := BuildDigest(added, 4)

	if !strings.HasPrefix(digest, "3 new papers harvested\n") {
		t.Fatalf("missing count line: %q", digest)
	}
	if !strings.Contains(digest, "- Walker\nScore: 5/5\nhttps://arxiv.org/html/1") {
		t.Fatalf("high scoring entry missing: %q", digest)
	}
	if strings.Contains(digest, "Grasper") || strings.Contains(digest, "Failed") {
		t.Fatalf("low scoring entries listed: %q", digest)
	}

	if digest := BuildDigest(added[1:], 4); !strings.Contains(digest, "No paper scored 4 or higher.") {
		t.Fatalf("expected no-highlight note: %q", digest)
	}
}
