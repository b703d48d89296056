package localstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/billforge/invoicing-api/internal/domain/entity"
	"github.com/billforge/invoicing-api/internal/session"
)

var _ session.BackupStore = (*BackupStore)(nil)

// BackupStore is the durable local mirror of the draft being edited, so
// an interrupted session (reload, crash, offline) does not lose unsynced
// edits. One fixed slot per store: starting a second draft before the
// first is submitted or discarded overwrites the backup. Single-session
// behavior is intentional; multi-tab support is a product decision.
type BackupStore struct {
	db *sql.DB
}

// Open opens (or creates) the backup database at path. WAL keeps the
// synchronous writes on the edit path cheap.
func Open(path string) (*BackupStore, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open backup store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping backup store: %w", err)
	}
	schema := `
		CREATE TABLE IF NOT EXISTS draft_backup (
			slot     INTEGER PRIMARY KEY CHECK (slot = 1),
			payload  TEXT NOT NULL,
			saved_at TIMESTAMP NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create backup schema: %w", err)
	}
	return &BackupStore{db: db}, nil
}

// Write overwrites the single backup slot with the draft, synchronously
// relative to the caller.
func (s *BackupStore) Write(draft *entity.InvoiceDraft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}
	query := `
		INSERT INTO draft_backup (slot, payload, saved_at) VALUES (1, ?, ?)
		ON CONFLICT (slot) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`
	if _, err := s.db.Exec(query, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// Read returns the last written record, or (nil, nil) when the slot is
// empty.
func (s *BackupStore) Read() (*session.BackupRecord, error) {
	var payload string
	var savedAt time.Time
	err := s.db.QueryRow(`SELECT payload, saved_at FROM draft_backup WHERE slot = 1`).Scan(&payload, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	rec := &session.BackupRecord{SavedAt: savedAt}
	if err := json.Unmarshal([]byte(payload), &rec.Draft); err != nil {
		return nil, fmt.Errorf("unmarshal backup: %w", err)
	}
	return rec, nil
}

// Clear empties the backup slot.
func (s *BackupStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM draft_backup WHERE slot = 1`); err != nil {
		return fmt.Errorf("clear backup: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BackupStore) Close() error {
	return s.db.Close()
}
