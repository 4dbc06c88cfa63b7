package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dopamine-bot/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    created_at TEXT NOT NULL,
    read_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS alert_reads (
    alert_id INTEGER NOT NULL,
    user_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (alert_id, user_id)
);
`

// Alert is the single deployment-wide announcement.
type Alert struct {
	ID          int64
	Title       string
	Description string
	CreatedAt   time.Time
	ReadCount   int64
}

// Store persists the current alert and per-user read positions.
type Store struct {
	pool *database.Pool
}

func NewStore(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

func (st *Store) Init(ctx context.Context) error {
	return st.pool.Exec(ctx, schema)
}

// Current returns the active alert, or nil when none has been pushed.
func (st *Store) Current(ctx context.Context) (*Alert, error) {
	var alert *Alert
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT id, title, description, created_at, read_count FROM alerts ORDER BY id DESC LIMIT 1`)
		var a Alert
		var createdAt string
		if err := row.Scan(&a.ID, &a.Title, &a.Description, &createdAt, &a.ReadCount); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return err
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		alert = &a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading current alert: %w", err)
	}
	return alert, nil
}

// Push replaces any existing alert and all of its read records with a fresh
// one, in a single transaction.
func (st *Store) Push(ctx context.Context, title, description string) (*Alert, error) {
	var alert *Alert
	err := st.pool.WithImmediate(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, `DELETE FROM alert_reads`); err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM alerts`); err != nil {
			return err
		}
		createdAt := time.Now().UTC().Format(time.RFC3339)
		res, err := conn.ExecContext(ctx,
			`INSERT INTO alerts (title, description, created_at) VALUES (?, ?, ?)`,
			title, description, createdAt)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		alert = &Alert{ID: id, Title: title, Description: description}
		alert.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pushing alert: %w", err)
	}
	return alert, nil
}

// ReadPosition returns the user's read position for the alert, assigning the
// next one if the user has not read it yet. Assignment runs under BEGIN
// IMMEDIATE so two concurrent first reads can never share a position.
func (st *Store) ReadPosition(ctx context.Context, alertID int64, userID string) (int64, error) {
	var position int64
	err := st.pool.WithImmediate(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT position FROM alert_reads WHERE alert_id = ? AND user_id = ?`, alertID, userID)
		err := row.Scan(&position)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return err
		}

		if _, err := conn.ExecContext(ctx,
			`UPDATE alerts SET read_count = read_count + 1 WHERE id = ?`, alertID); err != nil {
			return err
		}
		row = conn.QueryRowContext(ctx, `SELECT read_count FROM alerts WHERE id = ?`, alertID)
		if err := row.Scan(&position); err != nil {
			return err
		}
		_, err = conn.ExecContext(ctx,
			`INSERT INTO alert_reads (alert_id, user_id, position) VALUES (?, ?, ?)`,
			alertID, userID, position)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("assigning read position: %w", err)
	}
	return position, nil
}

// HasRead reports whether the user has already read the alert.
func (st *Store) HasRead(ctx context.Context, alertID int64, userID string) (bool, error) {
	var read bool
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT 1 FROM alert_reads WHERE alert_id = ? AND user_id = ?`, alertID, userID)
		var one int
		if err := row.Scan(&one); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return err
		}
		read = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("checking alert read: %w", err)
	}
	return read, nil
}
