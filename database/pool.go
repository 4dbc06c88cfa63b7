package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

// dsnParams carries the per-connection PRAGMA tuning for a single-writer,
// many-reader workload: WAL journaling, relaxed fsync, bounded busy-wait.
const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=-64000&_foreign_keys=on"

const (
	openAttempts = 5
	openBackoff  = 100 * time.Millisecond
	closeGrace   = 5 * time.Second
)

// Pool hands out a bounded number of persistent connections to one SQLite
// file. Acquire blocks until a connection is free; Release re-validates the
// connection with a probe query before returning it to the pool.
type Pool struct {
	db    *sql.DB
	conns chan *sql.Conn
	size  int
	path  string
}

// Open creates the database file (and its directory) if needed and eagerly
// opens size pooled connections. Each connection open is retried with
// exponential backoff before the error is returned to the caller.
func Open(path string, size int) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool size must be at least 1, got %d", size)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(size)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	p := &Pool{
		db:    db,
		conns: make(chan *sql.Conn, size),
		size:  size,
		path:  path,
	}

	for i := 0; i < size; i++ {
		conn, err := p.newConn()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to open pooled connection for %s: %w", path, err)
		}
		p.conns <- conn
	}

	return p, nil
}

// newConn pins a dedicated connection out of database/sql, retrying with
// backoff on transient open failure.
func (p *Pool) newConn() (*sql.Conn, error) {
	var conn *sql.Conn
	err := Retry(openAttempts, openBackoff, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, err := p.db.Conn(ctx)
		if err != nil {
			return err
		}
		if err := c.PingContext(ctx); err != nil {
			c.Close()
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Acquire blocks until a pooled connection is available or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	select {
	case conn := <-p.conns:
		return conn, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquiring connection for %s: %w", p.path, ctx.Err())
	}
}

// Release returns a connection to the pool. The connection is probed first;
// a broken connection is closed and replaced rather than handed back out.
func (p *Pool) Release(conn *sql.Conn) {
	if conn == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := conn.ExecContext(ctx, "SELECT 1"); err != nil {
		conn.Close()
		if fresh, err := p.newConn(); err == nil {
			p.conns <- fresh
		}
		return
	}
	p.conns <- conn
}

// With runs fn with an acquired connection and releases it on every exit
// path, including panics and context cancellation.
func (p *Pool) With(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)
	return fn(conn)
}

// WithImmediate runs fn inside a BEGIN IMMEDIATE transaction, taking the
// write lock up front. This is the guard for read-then-increment counter
// assignment: two concurrent callers serialize at the database, not in
// process memory.
func (p *Pool) WithImmediate(ctx context.Context, fn func(conn *sql.Conn) error) error {
	return p.With(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
			return fmt.Errorf("failed to begin immediate transaction: %w", err)
		}
		if err := fn(conn); err != nil {
			conn.ExecContext(ctx, "ROLLBACK")
			return err
		}
		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			conn.ExecContext(ctx, "ROLLBACK")
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// Exec acquires a connection, runs a single statement and releases.
func (p *Pool) Exec(ctx context.Context, query string, args ...any) error {
	return p.With(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, query, args...)
		return err
	})
}

// Size returns the configured pool size.
func (p *Pool) Size() int {
	return p.size
}

// Close drains the pool and closes every connection. Connections still
// checked out after a grace period are leaked rather than blocking shutdown.
func (p *Pool) Close() error {
	deadline := time.After(closeGrace)
	for i := 0; i < p.size; i++ {
		select {
		case conn := <-p.conns:
			conn.Close()
		case <-deadline:
			return p.db.Close()
		}
	}
	return p.db.Close()
}
