// Package database centralises sqlx connection helpers.  The driver is
// go-sql-driver/mysql; every store in the builder talks to one MySQL schema
// through the pool returned here.
//
// Public entry points:
//
//	Open(ctx, dsn)                     – conservative pool sizes.
//	OpenWithOptions(ctx, dsn, opts)    – fine-grained control.
//
// Both helpers Ping the database (with retries) before returning so callers
// can fail fast during bootstrap.  Callers should Close() the returned
// *sqlx.DB when no longer needed.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Options tunes the pool and the boot-time ping loop.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Retries         int           // extra ping attempts after the first
	RetryBackoff    time.Duration // doubled after each failed attempt
}

// DefaultOptions: 15 open, 5 idle, 30-minute lifetime, three retries.
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    15,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		Retries:         3,
		RetryBackoff:    500 * time.Millisecond,
	}
}

// Open returns a *sqlx.DB with DefaultOptions.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, dsn, DefaultOptions())
}

// OpenWithOptions opens the pool and pings until it answers or the retry
// budget is spent.
func OpenWithOptions(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	backoff := opts.RetryBackoff
	for attempt := 0; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if attempt >= opts.Retries {
			break
		}
		zap.S().Warnw("database ping failed, retrying",
			"attempt", attempt+1, "backoff", backoff, "err", err)
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	_ = db.Close()
	return nil, fmt.Errorf("ping database after %d attempts: %w", opts.Retries+1, err)
}
