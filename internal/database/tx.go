// internal/database/tx.go
//
// Context-carried transactions.
//
// Context
// -------
// Stores never hold a *sqlx.Tx themselves.  Each query asks Conn(ctx, db)
// for a handle: inside TxRunner.WithinTx that is the open transaction,
// anywhere else it is the pool.  This lets the publish engine run a whole
// multi-store sequence in one transaction without the stores knowing.
//
// Notes
// -----
//   - Nested WithinTx calls join the outer transaction.
//   - fn errors and panics roll back; panics are re-thrown.
//   - Begin and Commit failures are classified with apperr.FromDB, like
//     every other gateway error.
package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/sitebuilder/internal/apperr"
)

// DBTX is the handle every store query runs against.  Both *sqlx.DB and
// *sqlx.Tx satisfy it.
type DBTX interface {
	sqlx.ExtContext
}

type txKey struct{}

// Conn returns the transaction stored in ctx, or db when there is none.
func Conn(ctx context.Context, db *sqlx.DB) DBTX {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok && tx != nil {
		return tx
	}
	return db
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return ok && tx != nil
}

// TxRunner opens transactions on one pool.
type TxRunner struct {
	db   *sqlx.DB
	opts *sql.TxOptions
}

// NewTxRunner returns a runner using the driver's default isolation level.
func NewTxRunner(db *sqlx.DB) *TxRunner { return &TxRunner{db: db} }

// WithinTx runs fn with a context that carries a transaction, committing on
// success and rolling back on error or panic.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTx(ctx) {
		return fn(ctx)
	}

	const op = "database.WithinTx"
	tx, err := r.db.BeginTxx(ctx, r.opts)
	if err != nil {
		return apperr.FromDB(op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = apperr.FromDB(op, tx.Commit())
	}()

	err = fn(context.WithValue(ctx, txKey{}, tx))
	return err
}
