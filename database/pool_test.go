package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	p, err := Open(filepath.Join(t.TempDir(), "test.db"), size)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestOpenRejectsBadSize(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "test.db"), 0)
	assert.Error(t, err)
}

func TestAcquireReleaseCycle(t *testing.T) {
	p := openTestPool(t, 2)
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)

	// Pool exhausted: Acquire honors context cancellation.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.Release(a)
	p.Release(b)

	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(c)
}

func TestWithReleasesOnError(t *testing.T) {
	p := openTestPool(t, 1)
	ctx := context.Background()

	boom := errors.New("boom")
	err := p.With(ctx, func(conn *sql.Conn) error { return boom })
	assert.ErrorIs(t, err, boom)

	// The single connection made it back.
	err = p.With(ctx, func(conn *sql.Conn) error { return nil })
	assert.NoError(t, err)
}

func TestWithImmediateCommitsAndRollsBack(t *testing.T) {
	p := openTestPool(t, 2)
	ctx := context.Background()

	require.NoError(t, p.Exec(ctx, `CREATE TABLE t (n INTEGER)`))

	require.NoError(t, p.WithImmediate(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `INSERT INTO t (n) VALUES (1)`)
		return err
	}))

	boom := errors.New("boom")
	err := p.WithImmediate(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, `INSERT INTO t (n) VALUES (2)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, p.With(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM t`).Scan(&count)
	}))
	assert.Equal(t, 1, count, "the failed transaction rolled back")
}

func TestWithImmediateSerializesCounter(t *testing.T) {
	p := openTestPool(t, 4)
	ctx := context.Background()
	require.NoError(t, p.Exec(ctx, `CREATE TABLE counter (value INTEGER)`))
	require.NoError(t, p.Exec(ctx, `INSERT INTO counter (value) VALUES (0)`))

	const writers = 20
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for n := 0; n < writers; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = p.WithImmediate(ctx, func(conn *sql.Conn) error {
				var v int
				if err := conn.QueryRowContext(ctx, `SELECT value FROM counter`).Scan(&v); err != nil {
					return err
				}
				_, err := conn.ExecContext(ctx, `UPDATE counter SET value = ?`, v+1)
				return err
			})
		}(n)
	}
	wg.Wait()

	for n := 0; n < writers; n++ {
		require.NoError(t, errs[n])
	}
	var final int
	require.NoError(t, p.With(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `SELECT value FROM counter`).Scan(&final)
	}))
	assert.Equal(t, writers, final, "no lost updates under concurrency")
}

func TestRetryBacksOffAndSucceeds(t *testing.T) {
	calls := 0
	err := Retry(5, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(2, time.Millisecond, func() error {
		calls++
		return errors.New("permanent")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}
