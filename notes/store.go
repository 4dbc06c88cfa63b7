package notes

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dopamine-bot/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_notes (
    user_id TEXT NOT NULL,
    note_name TEXT NOT NULL,
    note_content TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (user_id, note_name)
);
CREATE INDEX IF NOT EXISTS idx_user_notes_user ON user_notes (user_id);
`

// Note is one named note belonging to a user.
type Note struct {
	UserID    string
	Name      string
	Content   string
	CreatedAt string
	UpdatedAt string
}

// Store persists per-user notes.
type Store struct {
	pool *database.Pool
}

func NewStore(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

func (st *Store) Init(ctx context.Context) error {
	return st.pool.Exec(ctx, schema)
}

// Save upserts a note, preserving created_at on update.
func (st *Store) Save(ctx context.Context, userID, name, content string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO user_notes (user_id, note_name, note_content, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, note_name) DO UPDATE SET
			   note_content = excluded.note_content,
			   updated_at = excluded.updated_at`,
			userID, name, content, now, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("saving note: %w", err)
	}
	return nil
}

// Get returns a note, or nil when it does not exist.
func (st *Store) Get(ctx context.Context, userID, name string) (*Note, error) {
	var note *Note
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT user_id, note_name, note_content, created_at, updated_at
			 FROM user_notes WHERE user_id = ? AND note_name = ?`, userID, name)
		var n Note
		err := row.Scan(&n.UserID, &n.Name, &n.Content, &n.CreatedAt, &n.UpdatedAt)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return err
		}
		note = &n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading note: %w", err)
	}
	return note, nil
}

// List returns the user's note names, optionally filtered by prefix.
func (st *Store) List(ctx context.Context, userID, prefix string) ([]string, error) {
	var names []string
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT note_name FROM user_notes
			 WHERE user_id = ? AND note_name LIKE ? || '%' ORDER BY note_name`,
			userID, prefix)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			names = append(names, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return names, nil
}

// Delete removes a note. It reports whether a row was removed.
func (st *Store) Delete(ctx context.Context, userID, name string) (bool, error) {
	var deleted bool
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`DELETE FROM user_notes WHERE user_id = ? AND note_name = ?`, userID, name)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	if err != nil {
		return false, fmt.Errorf("deleting note: %w", err)
	}
	return deleted, nil
}

// Ping probes one pooled connection, keeping it warm.
func (st *Store) Ping(ctx context.Context) error {
	return st.pool.With(ctx, func(conn *sql.Conn) error {
		return conn.PingContext(ctx)
	})
}
