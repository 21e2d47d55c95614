// Package reminder implements the reminder capability backed by SQLite, so
// reminders survive restarts.
package reminder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS reminders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	remind_at TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

// Reminder is one stored reminder. RemindAt keeps the user's phrasing
// ("3 PM", "tomorrow"); interpretation happens at notification time.
type Reminder struct {
	ID        int64
	Text      string
	RemindAt  string
	CreatedAt time.Time
}

// Store persists reminders in an SQLite database.
type Store struct {
	conn *sql.DB
	path string
}

// OpenStore opens (creating if needed) the reminder database at path.
// WAL mode is enabled for concurrent reads.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{conn: conn, path: path}, nil
}

// Add stores a reminder and returns its ID.
func (s *Store) Add(ctx context.Context, text, remindAt string) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		"INSERT INTO reminders (text, remind_at) VALUES (?, ?)", text, remindAt)
	if err != nil {
		return 0, fmt.Errorf("insert reminder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reminder id: %w", err)
	}
	return id, nil
}

// List returns all reminders, oldest first.
func (s *Store) List(ctx context.Context) ([]Reminder, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT id, text, remind_at, created_at FROM reminders ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		if err := rows.Scan(&r.ID, &r.Text, &r.RemindAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes a reminder by ID.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM reminders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete reminder %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reminder %d not found", id)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}
