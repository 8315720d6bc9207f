package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed ledger.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		id              TEXT NOT NULL UNIQUE,
		hash            TEXT NOT NULL,
		prev_hash       TEXT,
		iterations      INTEGER NOT NULL,
		file_count      INTEGER NOT NULL,
		signed          INTEGER NOT NULL DEFAULT 0,
		recorded_at     DATETIME NOT NULL,
		record          TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_hash ON records(hash);
	CREATE INDEX IF NOT EXISTS idx_records_recorded_at ON records(recorded_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(e *Entry) error {
	_, err := s.db.Exec(`INSERT INTO records (id, hash, prev_hash, iterations, file_count, signed, recorded_at, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Hash, nullStr(e.PrevHash), e.Iterations, e.FileCount, e.Signed,
		e.RecordedAt.UTC(), string(e.Record),
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

const entryColumns = "id, hash, prev_hash, iterations, file_count, signed, recorded_at, record"

func (s *SQLiteStore) Get(id string) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRow("SELECT "+entryColumns+" FROM records WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *SQLiteStore) Latest() (*Entry, error) {
	e, err := scanEntry(s.db.QueryRow("SELECT " + entryColumns + " FROM records ORDER BY seq DESC LIMIT 1"))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *SQLiteStore) List(filter Filter) ([]*Entry, int, error) {
	var conditions []string
	var args []any
	if !filter.Since.IsZero() {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM records"+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, filter.Offset)
	rows, err := s.db.Query("SELECT "+entryColumns+" FROM records"+where+" ORDER BY seq DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	entries, err := scanEntries(rows)
	return entries, count, err
}

func (s *SQLiteStore) Chain() ([]*Entry, error) {
	rows, err := s.db.Query("SELECT " + entryColumns + " FROM records ORDER BY seq ASC")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	e := &Entry{}
	var prevHash sql.NullString
	var record string
	var recordedAt time.Time
	if err := row.Scan(&e.ID, &e.Hash, &prevHash, &e.Iterations, &e.FileCount, &e.Signed, &recordedAt, &record); err != nil {
		return nil, err
	}
	e.PrevHash = prevHash.String
	e.RecordedAt = recordedAt.UTC()
	e.Record = []byte(record)
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
