package sticky

import (
	"context"
	"database/sql"
	"fmt"

	"dopamine-bot/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS sticky_panels (
    guild_id TEXT NOT NULL,
    panel_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    embed_color INTEGER NOT NULL DEFAULT 0,
    title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    message_content TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    footer TEXT NOT NULL DEFAULT '',
    channel_id TEXT NOT NULL DEFAULT '',
    last_message_id TEXT,
    image_only_mode INTEGER NOT NULL DEFAULT 0,
    member_whitelist_enabled INTEGER NOT NULL DEFAULT 0,
    member_whitelist_id TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (guild_id, panel_id)
);
`

// Panel is one sticky panel definition. A panel with a non-nil LastMessageID
// is live in its channel.
type Panel struct {
	GuildID          string
	PanelID          int64
	Name             string
	EmbedColor       int
	Title            string
	Description      string
	Content          string
	ImageURL         string
	Footer           string
	ChannelID        string
	LastMessageID    *string
	ImageOnly        bool
	WhitelistEnabled bool
	WhitelistID      string
}

// Store persists sticky panels. Panel IDs are a per-guild monotone counter
// assigned inside a BEGIN IMMEDIATE transaction.
type Store struct {
	pool *database.Pool
}

func NewStore(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

func (st *Store) Init(ctx context.Context) error {
	return st.pool.Exec(ctx, schema)
}

// Create inserts a new panel, assigning the guild's next panel ID.
func (st *Store) Create(ctx context.Context, p *Panel) error {
	err := st.pool.WithImmediate(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(panel_id), 0) + 1 FROM sticky_panels WHERE guild_id = ?`, p.GuildID)
		if err := row.Scan(&p.PanelID); err != nil {
			return err
		}
		_, err := conn.ExecContext(ctx,
			`INSERT INTO sticky_panels
			 (guild_id, panel_id, name, embed_color, title, description, message_content,
			  image_url, footer, channel_id, last_message_id, image_only_mode,
			  member_whitelist_enabled, member_whitelist_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.GuildID, p.PanelID, p.Name, p.EmbedColor, p.Title, p.Description, p.Content,
			p.ImageURL, p.Footer, p.ChannelID, p.LastMessageID, boolInt(p.ImageOnly),
			boolInt(p.WhitelistEnabled), p.WhitelistID)
		return err
	})
	if err != nil {
		return fmt.Errorf("creating sticky panel: %w", err)
	}
	return nil
}

// All returns every panel across all guilds, for the startup cache load.
func (st *Store) All(ctx context.Context) ([]Panel, error) {
	var panels []Panel
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, selectColumns+` FROM sticky_panels`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPanel(rows)
			if err != nil {
				return err
			}
			panels = append(panels, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("loading sticky panels: %w", err)
	}
	return panels, nil
}

const selectColumns = `SELECT guild_id, panel_id, name, embed_color, title, description,
	message_content, image_url, footer, channel_id, last_message_id,
	image_only_mode, member_whitelist_enabled, member_whitelist_id`

// SetLastMessage writes through the panel's live message ID; nil marks the
// panel as stopped.
func (st *Store) SetLastMessage(ctx context.Context, guildID string, panelID int64, messageID *string) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`UPDATE sticky_panels SET last_message_id = ? WHERE guild_id = ? AND panel_id = ?`,
			messageID, guildID, panelID)
		return err
	})
	if err != nil {
		return fmt.Errorf("updating sticky panel message: %w", err)
	}
	return nil
}

// SetChannel records the channel a panel is started in.
func (st *Store) SetChannel(ctx context.Context, guildID string, panelID int64, channelID string) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`UPDATE sticky_panels SET channel_id = ? WHERE guild_id = ? AND panel_id = ?`,
			channelID, guildID, panelID)
		return err
	})
	if err != nil {
		return fmt.Errorf("updating sticky panel channel: %w", err)
	}
	return nil
}

// SetModes updates the image-only and member-whitelist filters.
func (st *Store) SetModes(ctx context.Context, guildID string, panelID int64, imageOnly, whitelistEnabled bool, whitelistID string) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`UPDATE sticky_panels
			 SET image_only_mode = ?, member_whitelist_enabled = ?, member_whitelist_id = ?
			 WHERE guild_id = ? AND panel_id = ?`,
			boolInt(imageOnly), boolInt(whitelistEnabled), whitelistID, guildID, panelID)
		return err
	})
	if err != nil {
		return fmt.Errorf("updating sticky panel modes: %w", err)
	}
	return nil
}

// Delete removes a panel. It reports whether a row was removed.
func (st *Store) Delete(ctx context.Context, guildID string, panelID int64) (bool, error) {
	var deleted bool
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`DELETE FROM sticky_panels WHERE guild_id = ? AND panel_id = ?`, guildID, panelID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	if err != nil {
		return false, fmt.Errorf("deleting sticky panel: %w", err)
	}
	return deleted, nil
}

func scanPanel(rows *sql.Rows) (Panel, error) {
	var p Panel
	var imageOnly, whitelistEnabled int
	err := rows.Scan(&p.GuildID, &p.PanelID, &p.Name, &p.EmbedColor, &p.Title,
		&p.Description, &p.Content, &p.ImageURL, &p.Footer, &p.ChannelID,
		&p.LastMessageID, &imageOnly, &whitelistEnabled, &p.WhitelistID)
	p.ImageOnly = imageOnly != 0
	p.WhitelistEnabled = whitelistEnabled != 0
	return p, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
