package tracker

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"dopamine-bot/database"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu        sync.Mutex
	guilds    map[string]*discordgo.Guild
	forbidden map[string]bool
	sends     []string // descriptions of sent embeds
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		guilds:    make(map[string]*discordgo.Guild),
		forbidden: make(map[string]bool),
	}
}

func (f *fakeSession) Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forbidden[guildID] {
		return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	}
	if g, ok := f.guilds[guildID]; ok {
		return g, nil
	}
	return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text := data.Embeds[0].Description
	if data.Embeds[0].Title != "" {
		text = data.Embeds[0].Title
	}
	f.sends = append(f.sends, text)
	return &discordgo.Message{ID: "sent", ChannelID: channelID}, nil
}

func newTestFeature(t *testing.T) (*Feature, *fakeSession) {
	t.Helper()
	pool, err := database.Open(filepath.Join(t.TempDir(), "tracker.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	fs := newFakeSession()
	f := &Feature{
		pool:       pool,
		store:      NewStore(pool),
		lastCounts: make(map[string]int),
		session:    fs,
		ctx:        context.Background(),
	}
	require.NoError(t, f.store.Init(f.ctx))
	return f, fs
}

func TestRenderTokens(t *testing.T) {
	got := render("{servername} has {member_count}/{member_goal}, {remaining_until_goal} to go!", 90, 100, "Guildhall")
	assert.Equal(t, "Guildhall has 90/100, 10 to go!", got)

	// Past the goal, remaining clamps to zero.
	got = render("{remaining_until_goal} left", 120, 100, "x")
	assert.Equal(t, "0 left", got)

	// Empty format falls back to the default.
	assert.Equal(t, "We are now 5 members strong!", render("", 5, 0, "x"))
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat("now {member_count}!"))
	assert.False(t, ValidFormat("no tokens here"))
}

func TestMonitorAnnouncesGrowthOnly(t *testing.T) {
	f, fs := newTestFeature(t)

	require.NoError(t, f.store.Upsert(f.ctx, Tracker{
		GuildID: "g1", ChannelID: "chan", IsActive: true, LastMemberCount: 10, Color: 1,
	}))
	f.lastCounts["g1"] = 10
	fs.guilds["g1"] = &discordgo.Guild{ID: "g1", Name: "Guildhall", MemberCount: 12}

	require.NoError(t, f.monitor())
	require.Len(t, fs.sends, 1)
	assert.Contains(t, fs.sends[0], "12")

	// Unchanged count: quiet pass, but the cache already holds 12.
	require.NoError(t, f.monitor())
	assert.Len(t, fs.sends, 1)

	// Shrinking count: still quiet.
	fs.guilds["g1"].MemberCount = 11
	require.NoError(t, f.monitor())
	assert.Len(t, fs.sends, 1)

	got, err := f.store.Get(f.ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 12, got.LastMemberCount, "batched count update persisted")
}

func TestMonitorCelebratesGoalAndDeactivates(t *testing.T) {
	f, fs := newTestFeature(t)

	require.NoError(t, f.store.Upsert(f.ctx, Tracker{
		GuildID: "g1", ChannelID: "chan", IsActive: true, MemberGoal: 100, LastMemberCount: 99, Color: 1,
	}))
	f.lastCounts["g1"] = 99
	fs.guilds["g1"] = &discordgo.Guild{ID: "g1", Name: "Guildhall", MemberCount: 100}

	require.NoError(t, f.monitor())
	require.Len(t, fs.sends, 2)
	assert.Equal(t, "Goal reached!", fs.sends[1])

	got, err := f.store.Get(f.ctx, "g1")
	require.NoError(t, err)
	assert.False(t, got.IsActive, "tracker deactivated after reaching the goal")

	// A deactivated tracker is skipped entirely.
	fs.guilds["g1"].MemberCount = 200
	require.NoError(t, f.monitor())
	assert.Len(t, fs.sends, 2)
}

func TestMonitorSkipsForbiddenGuilds(t *testing.T) {
	f, fs := newTestFeature(t)

	require.NoError(t, f.store.Upsert(f.ctx, Tracker{
		GuildID: "g1", ChannelID: "chan", IsActive: true, LastMemberCount: 1, Color: 1,
	}))
	require.NoError(t, f.store.Upsert(f.ctx, Tracker{
		GuildID: "g2", ChannelID: "chan2", IsActive: true, LastMemberCount: 5, Color: 1,
	}))
	f.lastCounts["g1"] = 1
	f.lastCounts["g2"] = 5
	fs.forbidden["g1"] = true
	fs.guilds["g2"] = &discordgo.Guild{ID: "g2", Name: "Other", MemberCount: 6}

	require.NoError(t, f.monitor())
	require.Len(t, fs.sends, 1, "the forbidden guild is skipped, the rest still run")
	assert.Contains(t, fs.sends[0], "6")
}
