package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"PaperHarvester/internal/domain"
	"PaperHarvester/internal/ports"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"

	entriesTable = "harvested_entries"
	knownBatch   = 500
)

const createEntriesTable = `CREATE TABLE IF NOT EXISTS harvested_entries (
	identifier   TEXT PRIMARY KEY,
	date_key     TEXT NOT NULL,
	position     INTEGER NOT NULL,
	title        TEXT NOT NULL,
	score        INTEGER NOT NULL,
	harvested_at TEXT NOT NULL,
	payload      TEXT NOT NULL
)`

// SQLLedger mirrors harvested entries into SQLite or Postgres.
type SQLLedger struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.Ledger = (*SQLLedger)(nil)

// Open connects to the ledger database. For sqlite the DSN is a file path whose
// directory is created on demand.
func Open(driver, dsn string) (*SQLLedger, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = driverSQLite
	}

	switch driver {
	case driverSQLite:
		if dir := filepath.Dir(strings.TrimPrefix(dsn, "file:")); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create ledger directory: %w", err)
			}
		}
	case driverPostgres:
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if driver == driverSQLite {
		db.SetMaxOpenConns(1)
	}
	return NewSQLLedger(db, driver), nil
}

// NewSQLLedger wires an existing sql.DB; driver selects the placeholder style.
func NewSQLLedger(db *sql.DB, driver string) *SQLLedger {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == driverPostgres {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLLedger{db: db, sb: sb}
}

// Init creates the entries table if absent.
func (l *SQLLedger) Init(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, createEntriesTable); err != nil {
		return fmt.Errorf("create %s: %w", entriesTable, err)
	}
	return nil
}

// Known returns the subset of ids already mirrored.
func (l *SQLLedger) Known(ctx context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool)
	for start := 0; start < len(ids); start += knownBatch {
		end := min(start+knownBatch, len(ids))

		query, args, err := l.sb.Select("identifier").
			From(entriesTable).
			Where(sq.Eq{"identifier": ids[start:end]}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build known query: %w", err)
		}

		if err := l.collectIDs(ctx, query, args, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (l *SQLLedger) collectIDs(ctx context.Context, query string, args []any, into map[string]bool) error {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query known: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan id: %w", err)
		}
		into[id] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration: %w", err)
	}
	return nil
}

// Save inserts the entry; an existing identifier is left untouched since
// stored entries are immutable.
func (l *SQLLedger) Save(ctx context.Context, dateKey string, position int, entry domain.Entry) error {
	query, args, err := l.insertQuery(dateKey, position, entry)
	if err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert entry %s: %w", entry.ID, err)
	}
	return nil
}

func (l *SQLLedger) insertQuery(dateKey string, position int, entry domain.Entry) (string, []any, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return "", nil, fmt.Errorf("encode entry %s: %w", entry.ID, err)
	}

	query, args, err := l.sb.Insert(entriesTable).
		Columns("identifier", "date_key", "position", "title", "score", "harvested_at", "payload").
		Values(entry.ID, dateKey, position, entry.Title, entry.Score, entry.HarvestedAt, string(payload)).
		Suffix("ON CONFLICT (identifier) DO NOTHING").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert: %w", err)
	}
	return query, args, nil
}

// Archive rebuilds the date-bucketed archive in crawl order.
func (l *SQLLedger) Archive(ctx context.Context) (domain.Archive, error) {
	query, args, err := l.sb.Select("date_key", "payload").
		From(entriesTable).
		OrderBy("date_key", "position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build archive query: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	archive := domain.Archive{}
	for rows.Next() {
		var dateKey, payload string
		if err := rows.Scan(&dateKey, &payload); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		var entry domain.Entry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("decode entry payload: %w", err)
		}
		archive[dateKey] = append(archive[dateKey], entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return archive, nil
}

// Close releases the database handle.
func (l *SQLLedger) Close() error {
	return l.db.Close()
}
