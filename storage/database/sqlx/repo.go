package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Postgres error codes
const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
	pqCheckViolation      = "23514"
)

// dbExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
type dbExecutor interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

var (
	_ dbExecutor = (*sqlx.DB)(nil)
	_ dbExecutor = (*sqlx.Tx)(nil)
)

// withinTx runs `fn` in a new transaction, or in the current one when `exec` already is a transaction.
func withinTx(ctx context.Context, db *sqlx.DB, exec dbExecutor, fn func(tx *sqlx.Tx) error) error {
	if tx, ok := exec.(*sqlx.Tx); ok {
		return fn(tx)
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool { return pqCode(err) == pqUniqueViolation }

// notFound maps sql.ErrNoRows to `sentinel`.
func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

// where collects AND-ed conditions written with `?` bindvars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// selectWhere runs "`base` WHERE ... `suffix`" into `dest`.
func selectWhere(ctx context.Context, exec dbExecutor, dest interface{}, base string, w *where, suffix string) error {
	q := exec.Rebind(base + w.String() + suffix)
	return exec.SelectContext(ctx, dest, q, w.args...)
}

// rowsAffected turns an update/delete that touched nothing into `sentinel`.
func rowsAffected(res sql.Result, err error, sentinel error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}
