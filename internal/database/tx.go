package database

import (
	"context"
	"database/sql"
	"fmt"
)

// WithTx runs fn inside a transaction.  The transaction is committed when
// fn returns nil and rolled back otherwise, so callers never see an error
// while a partial write is still pending.  A panic inside fn rolls back and
// is re-raised.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
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
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()
	return fn(tx)
}
