package starboard

import (
	"context"
	"database/sql"
	"fmt"

	"dopamine-bot/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS guild_settings (
    guild_id TEXT PRIMARY KEY,
    star_threshold INTEGER NOT NULL DEFAULT 3,
    starboard_channel_id TEXT NOT NULL DEFAULT '',
    lfg_threshold INTEGER NOT NULL DEFAULT 4
);
CREATE TABLE IF NOT EXISTS star_posts (
    guild_id TEXT NOT NULL,
    source_message_id TEXT NOT NULL,
    starboard_message_id TEXT NOT NULL,
    PRIMARY KEY (guild_id, source_message_id)
);
`

const (
	defaultStarThreshold = 3
	defaultLFGThreshold  = 4
)

// Settings is a guild's starboard configuration.
type Settings struct {
	GuildID       string
	StarThreshold int
	ChannelID     string
	LFGThreshold  int
}

// Store persists guild settings and the source-to-mirror message mapping.
type Store struct {
	pool *database.Pool
}

func NewStore(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

func (st *Store) Init(ctx context.Context) error {
	return st.pool.Exec(ctx, schema)
}

// GetSettings returns a guild's settings, inserting the default row on first
// access.
func (st *Store) GetSettings(ctx context.Context, guildID string) (Settings, error) {
	settings := Settings{
		GuildID:       guildID,
		StarThreshold: defaultStarThreshold,
		LFGThreshold:  defaultLFGThreshold,
	}
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT star_threshold, starboard_channel_id, lfg_threshold
			 FROM guild_settings WHERE guild_id = ?`, guildID)
		err := row.Scan(&settings.StarThreshold, &settings.ChannelID, &settings.LFGThreshold)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return err
		}
		_, err = conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO guild_settings (guild_id, star_threshold, starboard_channel_id, lfg_threshold)
			 VALUES (?, ?, ?, ?)`,
			guildID, settings.StarThreshold, settings.ChannelID, settings.LFGThreshold)
		return err
	})
	if err != nil {
		return settings, fmt.Errorf("loading starboard settings: %w", err)
	}
	return settings, nil
}

// PutSettings upserts a guild's settings row.
func (st *Store) PutSettings(ctx context.Context, s Settings) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO guild_settings (guild_id, star_threshold, starboard_channel_id, lfg_threshold)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(guild_id) DO UPDATE SET
			   star_threshold = excluded.star_threshold,
			   starboard_channel_id = excluded.starboard_channel_id,
			   lfg_threshold = excluded.lfg_threshold`,
			s.GuildID, s.StarThreshold, s.ChannelID, s.LFGThreshold)
		return err
	})
	if err != nil {
		return fmt.Errorf("saving starboard settings: %w", err)
	}
	return nil
}

// MirrorID returns the starboard message mirroring a source message, or ""
// when no mirror exists.
func (st *Store) MirrorID(ctx context.Context, guildID, sourceID string) (string, error) {
	var mirrorID string
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT starboard_message_id FROM star_posts WHERE guild_id = ? AND source_message_id = ?`,
			guildID, sourceID)
		if err := row.Scan(&mirrorID); err != nil && err != sql.ErrNoRows {
			return err
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("loading star post: %w", err)
	}
	return mirrorID, nil
}

// PutMirror upserts the source-to-mirror mapping.
func (st *Store) PutMirror(ctx context.Context, guildID, sourceID, mirrorID string) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO star_posts (guild_id, source_message_id, starboard_message_id)
			 VALUES (?, ?, ?)
			 ON CONFLICT(guild_id, source_message_id) DO UPDATE SET
			   starboard_message_id = excluded.starboard_message_id`,
			guildID, sourceID, mirrorID)
		return err
	})
	if err != nil {
		return fmt.Errorf("saving star post: %w", err)
	}
	return nil
}

// DeleteMirror removes the mapping for a source message.
func (st *Store) DeleteMirror(ctx context.Context, guildID, sourceID string) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`DELETE FROM star_posts WHERE guild_id = ? AND source_message_id = ?`, guildID, sourceID)
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting star post: %w", err)
	}
	return nil
}
