package store

import (
	"database/sql"
	"errors"
	"github.com/uniplaces/carbon"
)

const createLogsTable = "CREATE TABLE IF NOT EXISTS logs (" +
	"id BIGINT AUTO_INCREMENT PRIMARY KEY, " +
	"level VARCHAR(16) NOT NULL, " +
	"action VARCHAR(64) NOT NULL, " +
	"paper_id VARCHAR(255) NOT NULL DEFAULT '', " +
	"message TEXT NOT NULL, " +
	"created_at DATETIME NOT NULL)"

// Store keeps the audit trail of changes to the notes in mysql
type Store struct {
	db *sql.DB
}

// New creates a new Store instance
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetDB returns the underlying sql.DB instance
func (store *Store) GetDB() *sql.DB {
	return store.db
}

// EnsureSchema creates the logs table when it does not exist yet.
func (store *Store) EnsureSchema() error {
	_, err := store.db.Exec(createLogsTable)
	return err
}

func (store *Store) SaveLog(entry Log) error {
	if entry.Action == "" {
		return errors.New("missing required fields")
	}
	if entry.Level == "" {
		entry.Level = LevelInfo
	}

	_, err := store.db.Exec("INSERT INTO logs (level, action, paper_id, message, created_at) VALUES (?, ?, ?, ?, ?)",
		entry.Level, entry.Action, entry.PaperID, entry.Message, carbon.Now().DateTimeString())
	return err
}

// RecentLogs returns up to limit entries, newest first.
func (store *Store) RecentLogs(limit int) ([]Log, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	rows, err := store.db.Query("SELECT id, level, action, paper_id, message, created_at FROM logs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []Log{}
	for rows.Next() {
		var entry Log
		err = rows.Scan(&entry.ID, &entry.Level, &entry.Action, &entry.PaperID, &entry.Message, &entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
