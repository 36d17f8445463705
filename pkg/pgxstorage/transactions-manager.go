package pgxstorage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type TransactionsManager struct {
	storage  *DBStorage
	isoLevel pgx.TxIsoLevel
}

func NewTransactionsManager(storage *DBStorage) *TransactionsManager {
	return &TransactionsManager{
		storage:  storage,
		isoLevel: pgx.ReadCommitted,
	}
}

// DoWithTransaction runs f with a context carrying the transaction. Nested
// calls become savepoints of the outer transaction. The transaction is
// committed when f returns nil and rolled back otherwise.
func (tm *TransactionsManager) DoWithTransaction(
	ctx context.Context,
	f func(ctx context.Context) error,
) error {
	txCtx, tx, err := tm.storage.begin(ctx, tm.isoLevel)
	if err != nil {
		return err
	}
	if err := f(txCtx); err != nil {
		return rollback(tx, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return rollback(tx, fmt.Errorf("transaction commit failed: %w", err))
	}
	return nil
}

// rollback uses a fresh context so a canceled request still releases the
// connection.
func rollback(tx pgx.Tx, cause error) error {
	err := tx.Rollback(context.Background())
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("transaction rollback failed: %w, rollback caused by %w", err, cause)
	}
	return cause
}
