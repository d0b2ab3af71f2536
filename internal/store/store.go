package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"PaperHarvester/internal/domain"
	"PaperHarvester/internal/fileio"
	"PaperHarvester/internal/ports"
)

// Store owns the date-bucketed archive: load, dedupe, append and flush.
// The crawl loop is the only writer; the mutex lets the shutdown path read a
// consistent archive after the loop has been cancelled.
type Store struct {
	path   string
	ledger ports.Ledger
	logger *slog.Logger

	mu       sync.Mutex
	archive  domain.Archive
	index    map[string]struct{}
	mirrored map[string]bool
	unsaved  int
}

// New builds a store backed by the JSON file at path. ledger may be nil.
func New(path string, ledger ports.Ledger, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:     path,
		ledger:   ledger,
		logger:   logger,
		archive:  domain.Archive{},
		index:    map[string]struct{}{},
		mirrored: map[string]bool{},
	}
}

// Load replaces the in-memory archive with the durable one. A missing file yields
// an empty archive; a corrupt one is rebuilt from the ledger when available, else
// emptied. Load never fails.
func (s *Store) Load(ctx context.Context) {
	archive, err := s.readFile()
	switch {
	case err == nil:
		s.logger.Info("archive loaded", "path", s.path, "days", len(archive), "entries", archive.Total())
	case errors.Is(err, os.ErrNotExist):
		s.logger.Info("no archive yet, starting empty", "path", s.path)
		archive = domain.Archive{}
	default:
		s.logger.Warn("archive unreadable, starting empty", "path", s.path, "error", err)
		archive = s.recoverFromLedger(ctx)
	}

	s.mu.Lock()
	s.archive = archive
	s.index = make(map[string]struct{}, archive.Total())
	for _, entries := range archive {
		for _, e := range entries {
			s.index[e.ID] = struct{}{}
		}
	}
	s.mirrored = map[string]bool{}
	s.unsaved = 0
	ids := make([]string, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	s.loadMirrored(ctx, ids)
}

func (s *Store) readFile() (domain.Archive, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var archive domain.Archive
	if err := json.Unmarshal(raw, &archive); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	if archive == nil {
		archive = domain.Archive{}
	}
	return archive, nil
}

func (s *Store) recoverFromLedger(ctx context.Context) domain.Archive {
	if s.ledger == nil {
		return domain.Archive{}
	}
	archive, err := s.ledger.Archive(ctx)
	if err != nil {
		s.logger.Error("ledger recovery failed", "error", err)
		return domain.Archive{}
	}
	s.logger.Info("archive rebuilt from ledger", "days", len(archive), "entries", archive.Total())
	return archive
}

func (s *Store) loadMirrored(ctx context.Context, ids []string) {
	if s.ledger == nil || len(ids) == 0 {
		return
	}
	known, err := s.ledger.Known(ctx, ids)
	if err != nil {
		s.logger.Warn("ledger lookup failed, entries will be re-mirrored", "error", err)
		return
	}
	s.mu.Lock()
	s.mirrored = known
	s.mu.Unlock()
}

// Contains reports whether any date bucket holds an entry with id.
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

// Append adds entry to the dateKey bucket. Callers check Contains first.
func (s *Store) Append(dateKey string, entry domain.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archive[dateKey] = append(s.archive[dateKey], entry)
	s.index[entry.ID] = struct{}{}
	s.unsaved++
}

// Unsaved counts entries appended since the last successful Flush.
func (s *Store) Unsaved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsaved
}

// Len counts stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Empty reports whether the archive holds no entries.
func (s *Store) Empty() bool {
	return s.Len() == 0
}

// Snapshot returns a deep copy of the archive.
func (s *Store) Snapshot() domain.Archive {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archive.Clone()
}

// Flush rewrites the archive file in full, then mirrors new entries into the
// ledger. Only the file write is reported as an error.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	data, err := encodeArchive(s.archive)
	pending := s.pendingMirror()
	written := s.unsaved
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := fileio.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write archive %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.unsaved -= written
	s.mu.Unlock()

	s.mirror(ctx, pending)
	return nil
}

func encodeArchive(archive domain.Archive) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(archive); err != nil {
		return nil, fmt.Errorf("encode archive: %w", err)
	}
	return buf.Bytes(), nil
}

type mirrorItem struct {
	dateKey  string
	position int
	entry    domain.Entry
}

// pendingMirror must be called with mu held.
func (s *Store) pendingMirror() []mirrorItem {
	if s.ledger == nil {
		return nil
	}
	var pending []mirrorItem
	for _, key := range s.archive.DateKeys() {
		for i, e := range s.archive[key] {
			if !s.mirrored[e.ID] {
				pending = append(pending, mirrorItem{dateKey: key, position: i, entry: e})
			}
		}
	}
	return pending
}

func (s *Store) mirror(ctx context.Context, pending []mirrorItem) {
	for _, item := range pending {
		if err := s.ledger.Save(ctx, item.dateKey, item.position, item.entry); err != nil {
			s.logger.Warn("ledger mirror failed", "id", item.entry.ID, "error", err)
			return
		}
		s.mu.Lock()
		s.mirrored[item.entry.ID] = true
		s.mu.Unlock()
	}
	if len(pending) > 0 {
		s.logger.Debug("ledger mirrored entries", "count", len(pending))
	}
}
