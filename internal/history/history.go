// Package history persists the lines accepted by the interactive shell.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/halyard/internal/storage"
)

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded shell line.
type Entry struct {
	ID        string
	SessionID string
	Line      string
	CreatedAt time.Time
}

// Store appends to and reads from the shell_history table. Each Store is one
// shell session.
type Store struct {
	db      *sql.DB
	owned   bool
	session string
	now     func() time.Time
}

// Open opens the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	s := New(db)
	s.owned = true
	return s, nil
}

// New returns a store over an already bootstrapped database.
func New(db *sql.DB) *Store {
	return &Store{
		db:      db,
		session: uuid.NewString(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SessionID identifies the lines written through this store.
func (s *Store) SessionID() string { return s.session }

// Append records a line. Blank lines are not recorded.
func (s *Store) Append(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO shell_history(id, session_id, line, created_at)
VALUES(?, ?, ?, ?);
`, uuid.NewString(), s.session, line, s.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Recent returns up to limit lines across all sessions, oldest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT line FROM (
  SELECT line, created_at, rowid
  FROM shell_history
  ORDER BY created_at DESC, rowid DESC
  LIMIT ?
)
ORDER BY created_at ASC, rowid ASC;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Session returns the entries written by this store, oldest first.
func (s *Store) Session(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, line, created_at
FROM shell_history
WHERE session_id = ?
ORDER BY created_at ASC, rowid ASC;
`, s.session)
	if err != nil {
		return nil, fmt.Errorf("query session history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			createdAtS string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Line, &createdAtS); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if t, err := time.Parse(timeLayout, createdAtS); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune keeps only the newest keep lines.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
DELETE FROM shell_history
WHERE rowid NOT IN (
  SELECT rowid FROM shell_history
  ORDER BY created_at DESC, rowid DESC
  LIMIT ?
);
`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
