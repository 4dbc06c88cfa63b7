package alerts

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"dopamine-bot/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	pool, err := database.Open(filepath.Join(t.TempDir(), "alerts.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	st := NewStore(pool)
	require.NoError(t, st.Init(context.Background()))
	return st
}

func TestPushReplacesAlertAndReads(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := st.Push(ctx, "first", "body one")
	require.NoError(t, err)

	_, err = st.ReadPosition(ctx, first.ID, "user-1")
	require.NoError(t, err)

	second, err := st.Push(ctx, "second", "body two")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	current, err := st.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "second", current.Title)

	read, err := st.HasRead(ctx, second.ID, "user-1")
	require.NoError(t, err)
	assert.False(t, read, "reads of the old alert must not carry over")
}

func TestReadPositionIsStable(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alert, err := st.Push(ctx, "title", "body")
	require.NoError(t, err)

	first, err := st.ReadPosition(ctx, alert.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	again, err := st.ReadPosition(ctx, alert.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestConcurrentReadPositionsAreUnique(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alert, err := st.Push(ctx, "title", "body")
	require.NoError(t, err)

	const readers = 20
	positions := make([]int64, readers)
	errs := make([]error, readers)

	var wg sync.WaitGroup
	for n := 0; n < readers; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			positions[n], errs[n] = st.ReadPosition(ctx, alert.ID, fmt.Sprintf("user-%d", n))
		}(n)
	}
	wg.Wait()

	seen := make(map[int64]bool, readers)
	for n := 0; n < readers; n++ {
		require.NoError(t, errs[n])
		assert.False(t, seen[positions[n]], "position %d assigned twice", positions[n])
		seen[positions[n]] = true
		assert.GreaterOrEqual(t, positions[n], int64(1))
		assert.LessOrEqual(t, positions[n], int64(readers))
	}

	current, err := st.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(readers), current.ReadCount)
}
