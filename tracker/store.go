package tracker

import (
	"context"
	"database/sql"
	"fmt"

	"dopamine-bot/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS member_tracker (
    guild_id TEXT PRIMARY KEY,
    channel_id TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    member_goal INTEGER NOT NULL DEFAULT 0,
    custom_format TEXT NOT NULL DEFAULT '',
    last_member_count INTEGER NOT NULL DEFAULT 0,
    color INTEGER NOT NULL DEFAULT 3066993
);
`

// Tracker is one guild's member count tracker.
type Tracker struct {
	GuildID         string
	ChannelID       string
	IsActive        bool
	MemberGoal      int
	CustomFormat    string
	LastMemberCount int
	Color           int
}

// Store persists member trackers.
type Store struct {
	pool *database.Pool
}

func NewStore(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

func (st *Store) Init(ctx context.Context) error {
	return st.pool.Exec(ctx, schema)
}

// Upsert writes a tracker row.
func (st *Store) Upsert(ctx context.Context, tr Tracker) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO member_tracker
			 (guild_id, channel_id, is_active, member_goal, custom_format, last_member_count, color)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(guild_id) DO UPDATE SET
			   channel_id = excluded.channel_id,
			   is_active = excluded.is_active,
			   member_goal = excluded.member_goal,
			   custom_format = excluded.custom_format,
			   last_member_count = excluded.last_member_count,
			   color = excluded.color`,
			tr.GuildID, tr.ChannelID, boolInt(tr.IsActive), tr.MemberGoal,
			tr.CustomFormat, tr.LastMemberCount, tr.Color)
		return err
	})
	if err != nil {
		return fmt.Errorf("saving member tracker: %w", err)
	}
	return nil
}

// Get returns a guild's tracker, or nil when none exists.
func (st *Store) Get(ctx context.Context, guildID string) (*Tracker, error) {
	var tracker *Tracker
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT guild_id, channel_id, is_active, member_goal, custom_format, last_member_count, color
			 FROM member_tracker WHERE guild_id = ?`, guildID)
		var tr Tracker
		var active int
		err := row.Scan(&tr.GuildID, &tr.ChannelID, &active, &tr.MemberGoal,
			&tr.CustomFormat, &tr.LastMemberCount, &tr.Color)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return err
		}
		tr.IsActive = active != 0
		tracker = &tr
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading member tracker: %w", err)
	}
	return tracker, nil
}

// Active returns every active tracker.
func (st *Store) Active(ctx context.Context) ([]Tracker, error) {
	var trackers []Tracker
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT guild_id, channel_id, is_active, member_goal, custom_format, last_member_count, color
			 FROM member_tracker WHERE is_active = 1`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var tr Tracker
			var active int
			if err := rows.Scan(&tr.GuildID, &tr.ChannelID, &active, &tr.MemberGoal,
				&tr.CustomFormat, &tr.LastMemberCount, &tr.Color); err != nil {
				return err
			}
			tr.IsActive = active != 0
			trackers = append(trackers, tr)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("loading active trackers: %w", err)
	}
	return trackers, nil
}

// SetActive flips a tracker without touching its other settings.
func (st *Store) SetActive(ctx context.Context, guildID string, active bool) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`UPDATE member_tracker SET is_active = ? WHERE guild_id = ?`, boolInt(active), guildID)
		return err
	})
	if err != nil {
		return fmt.Errorf("updating tracker state: %w", err)
	}
	return nil
}

// UpdateCounts writes a batch of fresh member counts in one transaction.
func (st *Store) UpdateCounts(ctx context.Context, counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}
	err := st.pool.WithImmediate(ctx, func(conn *sql.Conn) error {
		for guildID, count := range counts {
			if _, err := conn.ExecContext(ctx,
				`UPDATE member_tracker SET last_member_count = ? WHERE guild_id = ?`,
				count, guildID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("updating member counts: %w", err)
	}
	return nil
}

// Reset deletes every row belonging to a guild.
func (st *Store) Reset(ctx context.Context, guildID string) error {
	err := st.pool.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `DELETE FROM member_tracker WHERE guild_id = ?`, guildID)
		return err
	})
	if err != nil {
		return fmt.Errorf("resetting tracker: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
