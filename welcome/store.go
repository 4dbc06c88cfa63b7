package welcome

import (
	"context"
	"database/sql"
	"fmt"

	"dopamine-bot/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS welcome_settings (
    guild_id TEXT PRIMARY KEY,
    channel_id TEXT NOT NULL,
    custom_message TEXT NOT NULL DEFAULT '',
    show_image INTEGER NOT NULL DEFAULT 0,
    image_url TEXT NOT NULL DEFAULT '',
    embed_color INTEGER NOT NULL DEFAULT 3066993
);
`

// Settings is one guild's welcome configuration.
type Settings struct {
	GuildID       string
	ChannelID     string
	CustomMessage string
	ShowImage     bool
	ImageURL      string
	EmbedColor    int
}

// Store persists welcome settings.
type Store struct {
	pool *database.Pool
}

func NewStore(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

func (st *Store) Init(ctx context.Context) error {
	return st.pool.Exec(ctx, schema)
}

// Upsert writes a guild's settings row.
func (st *Store) Upsert(ctx context.Context, s Settings) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO welcome_settings
			 (guild_id, channel_id, custom_message, show_image, image_url, embed_color)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(guild_id) DO UPDATE SET
			   channel_id = excluded.channel_id,
			   custom_message = excluded.custom_message,
			   show_image = excluded.show_image,
			   image_url = excluded.image_url,
			   embed_color = excluded.embed_color`,
			s.GuildID, s.ChannelID, s.CustomMessage, boolInt(s.ShowImage), s.ImageURL, s.EmbedColor)
		return err
	})
	if err != nil {
		return fmt.Errorf("saving welcome settings: %w", err)
	}
	return nil
}

// Delete removes a guild's settings. It reports whether a row was removed.
func (st *Store) Delete(ctx context.Context, guildID string) (bool, error) {
	var deleted bool
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`DELETE FROM welcome_settings WHERE guild_id = ?`, guildID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	if err != nil {
		return false, fmt.Errorf("deleting welcome settings: %w", err)
	}
	return deleted, nil
}

// All loads every guild's settings for the startup cache.
func (st *Store) All(ctx context.Context) (map[string]Settings, error) {
	settings := make(map[string]Settings)
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT guild_id, channel_id, custom_message, show_image, image_url, embed_color
			 FROM welcome_settings`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s Settings
			var showImage int
			if err := rows.Scan(&s.GuildID, &s.ChannelID, &s.CustomMessage, &showImage,
				&s.ImageURL, &s.EmbedColor); err != nil {
				return err
			}
			s.ShowImage = showImage != 0
			settings[s.GuildID] = s
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("loading welcome settings: %w", err)
	}
	return settings, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
