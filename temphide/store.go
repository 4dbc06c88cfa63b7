package temphide

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dopamine-bot/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS temp_messages (
    message_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    hidden_text TEXT NOT NULL,
    timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_temp_messages_user ON temp_messages (user_id);
CREATE INDEX IF NOT EXISTS idx_temp_messages_time ON temp_messages (timestamp);
`

// Hidden is one stored temphide message.
type Hidden struct {
	MessageID string
	UserID    string
	Text      string
}

// Store persists the plaintext behind each hidden message.
type Store struct {
	pool *database.Pool
}

func NewStore(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

func (st *Store) Init(ctx context.Context) error {
	return st.pool.Exec(ctx, schema)
}

// Put records the plaintext for a posted hidden message.
func (st *Store) Put(ctx context.Context, messageID, userID, text string) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO temp_messages (message_id, user_id, hidden_text, timestamp) VALUES (?, ?, ?, ?)`,
			messageID, userID, text, time.Now().UTC().Format(time.RFC3339))
		return err
	})
	if err != nil {
		return fmt.Errorf("storing hidden message: %w", err)
	}
	return nil
}

// Get returns the stored message, or nil when it does not exist.
func (st *Store) Get(ctx context.Context, messageID string) (*Hidden, error) {
	var hidden *Hidden
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT message_id, user_id, hidden_text FROM temp_messages WHERE message_id = ?`, messageID)
		var h Hidden
		err := row.Scan(&h.MessageID, &h.UserID, &h.Text)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return err
		}
		hidden = &h
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading hidden message: %w", err)
	}
	return hidden, nil
}

// Delete drops the stored message.
func (st *Store) Delete(ctx context.Context, messageID string) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `DELETE FROM temp_messages WHERE message_id = ?`, messageID)
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting hidden message: %w", err)
	}
	return nil
}
