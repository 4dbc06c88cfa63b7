package temphide

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"dopamine-bot/cache"
	"dopamine-bot/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestROT13IsItsOwnInverse(t *testing.T) {
	cases := []struct {
		plain, scrambled string
	}{
		{"hello", "uryyb"},
		{"Hello, World!", "Uryyb, Jbeyq!"},
		{"already 13 letters", "nyernql 13 yrggref"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.scrambled, ROT13(tc.plain))
		assert.Equal(t, tc.plain, ROT13(ROT13(tc.plain)))
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	pool, err := database.Open(filepath.Join(t.TempDir(), "temphide.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	st := NewStore(pool)
	require.NoError(t, st.Init(context.Background()))
	return st
}

func TestStoreRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "m1", "u1", "the secret"))

	hidden, err := st.Get(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, hidden)
	assert.Equal(t, "u1", hidden.UserID)
	assert.Equal(t, "the secret", hidden.Text)

	require.NoError(t, st.Delete(ctx, "m1"))
	hidden, err = st.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, hidden)

	// Deleting an already-deleted row is fine.
	require.NoError(t, st.Delete(ctx, "m1"))
}

func TestCooldownWindow(t *testing.T) {
	cooldowns := cache.NewTTL[string, struct{}](cooldownTTL)
	base := time.Now()
	now := base
	cooldowns.SetClock(func() time.Time { return now })

	cooldowns.Put("u1", struct{}{})

	_, held := cooldowns.Get("u1")
	assert.True(t, held)

	now = base.Add(59 * time.Second)
	_, held = cooldowns.Get("u1")
	assert.True(t, held, "still inside the window")

	now = base.Add(60 * time.Second)
	_, held = cooldowns.Get("u1")
	assert.False(t, held, "expired exactly at the boundary")
}
