package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"PaperHarvester/internal/fileio"
)

// Cursor marks where an unfinished crawl stopped.
type Cursor struct {
	StartURL  string `json:"start_url"`
	NextURL   string `json:"next_url"`
	Page      int    `json:"page"`
	UpdatedAt string `json:"updated_at"`
}

// CursorFile persists the resume marker beside the archive. An empty path
// disables it.
type CursorFile struct {
	path string
}

// NewCursorFile binds the sidecar location.
func NewCursorFile(path string) *CursorFile {
	return &CursorFile{path: path}
}

// Load returns the saved cursor; ok is false when none exists or it is unreadable.
func (c *CursorFile) Load() (Cursor, bool, error) {
	if c == nil || c.path == "" {
		return Cursor{}, false, nil
	}
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return Cursor{}, false, nil
	}
	if err != nil {
		return Cursor{}, false, fmt.Errorf("read cursor: %w", err)
	}
	var cur Cursor
	if err := json.Unmarshal(raw, &cur); err != nil {
		return Cursor{}, false, fmt.Errorf("decode cursor: %w", err)
	}
	if cur.NextURL == "" || cur.Page < 1 {
		return Cursor{}, false, nil
	}
	return cur, true, nil
}

// Save overwrites the cursor.
func (c *CursorFile) Save(cur Cursor) error {
	if c == nil || c.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(cur, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	return fileio.WriteFileAtomic(c.path, data, 0o644)
}

// Clear removes the cursor after a run that reached its natural end.
func (c *CursorFile) Clear() error {
	if c == nil || c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cursor: %w", err)
	}
	return nil
}
