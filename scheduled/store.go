package scheduled

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"dopamine-bot/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS scheduled_messages (
    guild_id TEXT NOT NULL,
    message_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    message_content TEXT NOT NULL,
    frequency_seconds INTEGER NOT NULL,
    next_send_time INTEGER NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    started_at INTEGER NOT NULL,
    PRIMARY KEY (guild_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_scheduled_due ON scheduled_messages (is_active, next_send_time);
CREATE INDEX IF NOT EXISTS idx_scheduled_guild ON scheduled_messages (guild_id, message_id);
`

// Message is one recurring scheduled message.
type Message struct {
	GuildID          string
	MessageID        int64
	Name             string
	ChannelID        string
	Content          string
	FrequencySeconds int64
	NextSendTime     int64
	IsActive         bool
	StartedAt        int64
}

// Store persists scheduled messages. Message IDs are a per-guild monotone
// counter assigned inside a BEGIN IMMEDIATE transaction.
type Store struct {
	pool *database.Pool
}

func NewStore(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

func (st *Store) Init(ctx context.Context) error {
	return st.pool.Exec(ctx, schema)
}

// Create inserts a new scheduled message, assigning the guild's next message
// ID in the same transaction so concurrent setups cannot collide.
func (st *Store) Create(ctx context.Context, m *Message) error {
	err := st.pool.WithImmediate(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(message_id), 0) + 1 FROM scheduled_messages WHERE guild_id = ?`,
			m.GuildID)
		if err := row.Scan(&m.MessageID); err != nil {
			return err
		}
		_, err := conn.ExecContext(ctx,
			`INSERT INTO scheduled_messages
			 (guild_id, message_id, name, channel_id, message_content, frequency_seconds, next_send_time, is_active, started_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.GuildID, m.MessageID, m.Name, m.ChannelID, m.Content,
			m.FrequencySeconds, m.NextSendTime, boolInt(m.IsActive), m.StartedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("creating scheduled message: %w", err)
	}
	return nil
}

// List returns every scheduled message for a guild, ordered by ID.
func (st *Store) List(ctx context.Context, guildID string) ([]Message, error) {
	var messages []Message
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT guild_id, message_id, name, channel_id, message_content,
			        frequency_seconds, next_send_time, is_active, started_at
			 FROM scheduled_messages WHERE guild_id = ? ORDER BY message_id`, guildID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("listing scheduled messages: %w", err)
	}
	return messages, nil
}

// Get returns one scheduled message, or nil if it does not exist.
func (st *Store) Get(ctx context.Context, guildID string, messageID int64) (*Message, error) {
	var msg *Message
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT guild_id, message_id, name, channel_id, message_content,
			        frequency_seconds, next_send_time, is_active, started_at
			 FROM scheduled_messages WHERE guild_id = ? AND message_id = ?`, guildID, messageID)
		m, err := scanMessage(row)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return err
		}
		msg = &m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading scheduled message: %w", err)
	}
	return msg, nil
}

// Delete removes a scheduled message. It reports whether a row was removed.
func (st *Store) Delete(ctx context.Context, guildID string, messageID int64) (bool, error) {
	var deleted bool
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`DELETE FROM scheduled_messages WHERE guild_id = ? AND message_id = ?`, guildID, messageID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	if err != nil {
		return false, fmt.Errorf("deleting scheduled message: %w", err)
	}
	return deleted, nil
}

// SetActive starts or stops a message. Starting resets next_send_time to
// now + frequency. It reports whether the row exists.
func (st *Store) SetActive(ctx context.Context, guildID string, messageID int64, active bool, now time.Time) (bool, error) {
	var found bool
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		var res sql.Result
		var err error
		if active {
			res, err = conn.ExecContext(ctx,
				`UPDATE scheduled_messages
				 SET is_active = 1, next_send_time = ? + frequency_seconds, started_at = ?
				 WHERE guild_id = ? AND message_id = ?`,
				now.Unix(), now.Unix(), guildID, messageID)
		} else {
			res, err = conn.ExecContext(ctx,
				`UPDATE scheduled_messages SET is_active = 0 WHERE guild_id = ? AND message_id = ?`,
				guildID, messageID)
		}
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		found = n > 0
		return err
	})
	if err != nil {
		return false, fmt.Errorf("updating scheduled message state: %w", err)
	}
	return found, nil
}

// Due returns active messages whose next_send_time is at or before now.
func (st *Store) Due(ctx context.Context, now time.Time) ([]Message, error) {
	var messages []Message
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT guild_id, message_id, name, channel_id, message_content,
			        frequency_seconds, next_send_time, is_active, started_at
			 FROM scheduled_messages WHERE is_active = 1 AND next_send_time <= ?`, now.Unix())
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("selecting due scheduled messages: %w", err)
	}
	return messages, nil
}

// Advance moves a batch of sent messages to their next send time in one
// statement per batch.
func (st *Store) Advance(ctx context.Context, sent []Message, now time.Time) error {
	if len(sent) == 0 {
		return nil
	}
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		var sb strings.Builder
		args := make([]any, 0, len(sent)*3+1)
		sb.WriteString(`UPDATE scheduled_messages SET next_send_time = ? + frequency_seconds WHERE (guild_id, message_id) IN (`)
		args = append(args, now.Unix())
		for n, m := range sent {
			if n > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?)")
			args = append(args, m.GuildID, m.MessageID)
		}
		sb.WriteString(")")
		_, err := conn.ExecContext(ctx, sb.String(), args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("advancing scheduled messages: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (Message, error) {
	var m Message
	var active int
	err := row.Scan(&m.GuildID, &m.MessageID, &m.Name, &m.ChannelID, &m.Content,
		&m.FrequencySeconds, &m.NextSendTime, &active, &m.StartedAt)
	m.IsActive = active != 0
	return m, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
