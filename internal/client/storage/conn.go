// Package storage owns the local SQLite handle. The handle is opened lazily,
// reopened after it was invalidated, and every operation acquires it with a
// bounded retry and a hard timeout.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Executor runs functions against the store.
type Executor interface {
	// Do runs fn with a plain handle.
	Do(ctx context.Context, fn func(ctx context.Context, db dbx.DBTX) error) error
	// Tx runs fn inside a transaction.
	Tx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
}

type Options struct {
	Path        string
	MaxAttempts uint64
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 50 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
}

// Conn is the long-lived store handle.
type Conn struct {
	opts   Options
	logger logging.Logger

	// open is a test seam for InitDatabase.
	open func(ctx context.Context, path string) (*sql.DB, error)

	mu sync.Mutex
	db *sql.DB
}

func NewConn(opts Options, logger logging.Logger) *Conn {
	opts.applyDefaults()
	return &Conn{
		opts:   opts,
		logger: logger.With("module", "storage"),
		open:   InitDatabase,
	}
}

func (c *Conn) handle(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}

	db, err := c.open(ctx, c.opts.Path)
	if err != nil {
		return nil, err
	}
	c.db = db
	c.logger.Debug(ctx, "store opened", "path", c.opts.Path)
	return db, nil
}

// invalidate forgets db if it is still the current handle.
func (c *Conn) invalidate(db *sql.DB) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == db {
		_ = c.db.Close()
		c.db = nil
	}
}

func (c *Conn) backoff() retry.Backoff {
	b := retry.NewExponential(c.opts.BaseDelay)
	b = retry.WithCappedDuration(c.opts.MaxDelay, b)
	return retry.WithMaxRetries(c.opts.MaxAttempts-1, b)
}

func (c *Conn) run(ctx context.Context, op string, fn func(ctx context.Context, db *sql.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var opErr error
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		db, err := c.handle(ctx)
		if err != nil {
			c.logger.Warn(ctx, "store open failed", "op", op, "error", err)
			return retry.RetryableError(err)
		}

		opErr = fn(ctx, db)
		if opErr != nil && isConnGone(opErr) {
			c.logger.Warn(ctx, "store handle invalidated, reopening", "op", op, "error", opErr)
			c.invalidate(db)
			return retry.RetryableError(opErr)
		}
		return nil
	})
	if err != nil {
		return common.NewStorageError(common.ErrIO, op, "", err)
	}
	return opErr
}

func (c *Conn) Do(ctx context.Context, fn func(ctx context.Context, db dbx.DBTX) error) error {
	return c.run(ctx, "do", func(ctx context.Context, db *sql.DB) error {
		return fn(ctx, db)
	})
}

func (c *Conn) Tx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return c.run(ctx, "tx", func(ctx context.Context, db *sql.DB) error {
		return dbx.WithTx(ctx, db, nil, fn)
	})
}

// Close releases the handle. A later call reopens it.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func isConnGone(err error) bool {
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// Bound returns an Executor that runs everything on tx. Nested Tx calls
// join the outer transaction.
func Bound(tx dbx.DBTX) Executor {
	return bound{tx: tx}
}

type bound struct {
	tx dbx.DBTX
}

func (b bound) Do(ctx context.Context, fn func(ctx context.Context, db dbx.DBTX) error) error {
	return fn(ctx, b.tx)
}

func (b bound) Tx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return fn(ctx, b.tx)
}
