package chatctl

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLStore keeps the per-chat disabled lists in a sqlite database, one row
// per chat with the same comma-separated value the file format uses, so the
// two backends are interchangeable.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens (and if needed initializes) the database at path.
func OpenSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open chatctl db: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS chat_plugins (
		chat_id  INTEGER PRIMARY KEY,
		disabled TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init chatctl db: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// Disabled returns the chat's disabled list, or (nil, nil) when no row exists.
func (s *SQLStore) Disabled(chatID int64) ([]string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT disabled FROM chat_plugins WHERE chat_id = ?`, chatID,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query disabled list: %w", err)
	}

	return strings.Split(strings.TrimSpace(value), ","), nil
}

// SetDisabled replaces the chat's disabled list.
func (s *SQLStore) SetDisabled(chatID int64, plugins []string) error {
	_, err := s.db.Exec(
		`INSERT INTO chat_plugins (chat_id, disabled) VALUES (?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET disabled = excluded.disabled`,
		chatID, strings.Join(plugins, ","),
	)
	if err != nil {
		return fmt.Errorf("store disabled list: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
