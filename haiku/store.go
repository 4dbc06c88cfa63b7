package haiku

import (
	"context"
	"database/sql"
	"fmt"

	"dopamine-bot/database"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS haiku_settings (
    guild_id TEXT PRIMARY KEY,
    channel_id TEXT NOT NULL,
    is_enabled INTEGER NOT NULL DEFAULT 1
);
`

const wordsSchema = `
CREATE TABLE IF NOT EXISTS haiku_words (
    word TEXT PRIMARY KEY,
    syllables INTEGER NOT NULL
);
`

// SettingsStore persists which channel each guild watches for haikus.
type SettingsStore struct {
	pool *database.Pool
}

func NewSettingsStore(pool *database.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

func (st *SettingsStore) Init(ctx context.Context) error {
	return st.pool.Exec(ctx, settingsSchema)
}

// Enable upserts the guild's watched channel.
func (st *SettingsStore) Enable(ctx context.Context, guildID, channelID string) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO haiku_settings (guild_id, channel_id, is_enabled) VALUES (?, ?, 1)
			 ON CONFLICT(guild_id) DO UPDATE SET channel_id = excluded.channel_id, is_enabled = 1`,
			guildID, channelID)
		return err
	})
	if err != nil {
		return fmt.Errorf("enabling haiku detection: %w", err)
	}
	return nil
}

// Disable turns detection off without forgetting the channel.
func (st *SettingsStore) Disable(ctx context.Context, guildID string) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`UPDATE haiku_settings SET is_enabled = 0 WHERE guild_id = ?`, guildID)
		return err
	})
	if err != nil {
		return fmt.Errorf("disabling haiku detection: %w", err)
	}
	return nil
}

// EnabledChannels returns the channel set detection is active in.
func (st *SettingsStore) EnabledChannels(ctx context.Context) (map[string]bool, error) {
	channels := make(map[string]bool)
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT channel_id FROM haiku_settings WHERE is_enabled = 1`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var channelID string
			if err := rows.Scan(&channelID); err != nil {
				return err
			}
			channels[channelID] = true
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("loading haiku channels: %w", err)
	}
	return channels, nil
}

// WordStore persists the curated syllable table in its own database file.
type WordStore struct {
	pool *database.Pool
}

func NewWordStore(pool *database.Pool) *WordStore {
	return &WordStore{pool: pool}
}

func (st *WordStore) Init(ctx context.Context) error {
	return st.pool.Exec(ctx, wordsSchema)
}

// Upsert writes a batch of word entries in one transaction.
func (st *WordStore) Upsert(ctx context.Context, words map[string]int) error {
	err := st.pool.WithImmediate(ctx, func(conn *sql.Conn) error {
		for word, syllables := range words {
			_, err := conn.ExecContext(ctx,
				`INSERT INTO haiku_words (word, syllables) VALUES (?, ?)
				 ON CONFLICT(word) DO UPDATE SET syllables = excluded.syllables`,
				word, syllables)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upserting haiku words: %w", err)
	}
	return nil
}

// All loads the full word table.
func (st *WordStore) All(ctx context.Context) (map[string]int, error) {
	words := make(map[string]int)
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `SELECT word, syllables FROM haiku_words`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var word string
			var syllables int
			if err := rows.Scan(&word, &syllables); err != nil {
				return err
			}
			words[word] = syllables
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("loading haiku words: %w", err)
	}
	return words, nil
}

// Count reports the size of the word table.
func (st *WordStore) Count(ctx context.Context) (int, error) {
	var count int
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM haiku_words`).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("counting haiku words: %w", err)
	}
	return count, nil
}
