package scheduled

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dopamine-bot/database"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu    sync.Mutex
	sends []string // channel IDs in send order
	fail  map[string]error
}

func (f *fakeSender) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[channelID]; ok {
		return nil, err
	}
	f.sends = append(f.sends, channelID)
	return &discordgo.Message{ID: "sent", ChannelID: channelID}, nil
}

func newTestFeature(t *testing.T) (*Feature, *fakeSender) {
	t.Helper()
	pool, err := database.Open(filepath.Join(t.TempDir(), "scheduled.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	sender := &fakeSender{fail: make(map[string]error)}
	f := &Feature{
		pool:    pool,
		store:   NewStore(pool),
		session: sender,
		now:     time.Now,
		ctx:     context.Background(),
	}
	require.NoError(t, f.store.Init(f.ctx))
	return f, sender
}

func TestTickSendsDueMessageOnceAndAdvances(t *testing.T) {
	f, sender := newTestFeature(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return base }

	m := &Message{
		GuildID:          "g1",
		Name:             "daily",
		ChannelID:        "chan-1",
		Content:          "hello",
		FrequencySeconds: 3600,
		NextSendTime:     base.Unix(), // due right now
		IsActive:         true,
		StartedAt:        base.Unix(),
	}
	require.NoError(t, f.store.Create(f.ctx, m))

	require.NoError(t, f.tick())
	assert.Equal(t, []string{"chan-1"}, sender.sends)

	// Same instant again: next_send_time has advanced, nothing is due.
	require.NoError(t, f.tick())
	assert.Len(t, sender.sends, 1)

	got, err := f.store.Get(f.ctx, "g1", m.MessageID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, base.Unix()+3600, got.NextSendTime)

	// One second before the new send time: still not due.
	f.now = func() time.Time { return base.Add(3599 * time.Second) }
	require.NoError(t, f.tick())
	assert.Len(t, sender.sends, 1)

	// At the new send time it fires again.
	f.now = func() time.Time { return base.Add(3600 * time.Second) }
	require.NoError(t, f.tick())
	assert.Len(t, sender.sends, 2)
}

func TestTickSkipsFailingRowAndKeepsItDue(t *testing.T) {
	f, sender := newTestFeature(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return base }
	sender.fail["broken"] = assert.AnError

	good := &Message{GuildID: "g1", Name: "good", ChannelID: "chan-1", Content: "a",
		FrequencySeconds: 600, NextSendTime: base.Unix(), IsActive: true, StartedAt: base.Unix()}
	bad := &Message{GuildID: "g1", Name: "bad", ChannelID: "broken", Content: "b",
		FrequencySeconds: 600, NextSendTime: base.Unix(), IsActive: true, StartedAt: base.Unix()}
	require.NoError(t, f.store.Create(f.ctx, good))
	require.NoError(t, f.store.Create(f.ctx, bad))

	require.NoError(t, f.tick())
	assert.Equal(t, []string{"chan-1"}, sender.sends)

	// The failed row keeps its send time and is retried next tick.
	gotBad, err := f.store.Get(f.ctx, "g1", bad.MessageID)
	require.NoError(t, err)
	assert.Equal(t, base.Unix(), gotBad.NextSendTime)

	gotGood, err := f.store.Get(f.ctx, "g1", good.MessageID)
	require.NoError(t, err)
	assert.Equal(t, base.Unix()+600, gotGood.NextSendTime)
}

func TestStoppedMessagesAreNotSent(t *testing.T) {
	f, sender := newTestFeature(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return base }

	m := &Message{GuildID: "g1", Name: "n", ChannelID: "chan-1", Content: "x",
		FrequencySeconds: 600, NextSendTime: base.Unix(), IsActive: true, StartedAt: base.Unix()}
	require.NoError(t, f.store.Create(f.ctx, m))

	found, err := f.store.SetActive(f.ctx, "g1", m.MessageID, false, base)
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, f.tick())
	assert.Empty(t, sender.sends)

	// Restarting resets the send time relative to the restart instant.
	restart := base.Add(2 * time.Hour)
	found, err = f.store.SetActive(f.ctx, "g1", m.MessageID, true, restart)
	require.NoError(t, err)
	require.True(t, found)

	got, err := f.store.Get(f.ctx, "g1", m.MessageID)
	require.NoError(t, err)
	assert.Equal(t, restart.Unix()+600, got.NextSendTime)
}

func TestCreateAssignsPerGuildMonotoneIDs(t *testing.T) {
	f, _ := newTestFeature(t)
	base := time.Now()

	const writers = 10
	ids := make([]int64, writers)
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for n := 0; n < writers; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m := &Message{GuildID: "g1", Name: "n", ChannelID: "c", Content: "x",
				FrequencySeconds: 600, NextSendTime: base.Unix(), IsActive: true, StartedAt: base.Unix()}
			errs[n] = f.store.Create(f.ctx, m)
			ids[n] = m.MessageID
		}(n)
	}
	wg.Wait()

	seen := make(map[int64]bool, writers)
	for n := 0; n < writers; n++ {
		require.NoError(t, errs[n])
		assert.False(t, seen[ids[n]], "message ID %d assigned twice", ids[n])
		seen[ids[n]] = true
	}

	// A different guild starts its own counter at 1.
	other := &Message{GuildID: "g2", Name: "n", ChannelID: "c", Content: "x",
		FrequencySeconds: 600, NextSendTime: base.Unix(), IsActive: true, StartedAt: base.Unix()}
	require.NoError(t, f.store.Create(f.ctx, other))
	assert.Equal(t, int64(1), other.MessageID)
}
