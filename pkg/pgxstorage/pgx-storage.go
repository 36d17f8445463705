package pgxstorage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey int

const (
	transactionKey contextKey = iota
)

var errInvalidTransaction = errors.New("invalid transaction type")

type DBFactory interface {
	Create(ctx context.Context) (*pgxpool.Pool, error)
}

// querier is the part of the pgx API shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBStorage runs queries on the pool, or on the transaction stored in the
// context by TransactionsManager when there is one.
type DBStorage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dbFactory DBFactory) (*DBStorage, error) {
	pool, err := dbFactory.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return &DBStorage{
		pool: pool,
	}, nil
}

func (s *DBStorage) Close() {
	s.pool.Close()
}

func (s *DBStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx) //nolint:wrapcheck // unnecessary
}

func (s *DBStorage) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return q.Exec(ctx, query, args...) //nolint:wrapcheck // unnecessary
}

func (s *DBStorage) QueryRow(ctx context.Context, query string, args ...any) (pgx.Row, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	return q.QueryRow(ctx, query, args...), nil
}

func (s *DBStorage) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	return q.Query(ctx, query, args...) //nolint:wrapcheck // unnecessary
}

// QueryValue scans the single row returned by query into dest.
func (s *DBStorage) QueryValue(ctx context.Context, query string, args []any, dest []any) error {
	row, err := s.QueryRow(ctx, query, args...)
	if err != nil {
		return err
	}
	return row.Scan(dest...) //nolint:wrapcheck // unnecessary
}

func (s *DBStorage) conn(ctx context.Context) (querier, error) {
	tx, ok, err := transactionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.pool, nil
	}
	return tx, nil
}

// begin opens a transaction, or a savepoint when ctx already carries one, and
// returns a context carrying it.
func (s *DBStorage) begin(ctx context.Context, isoLevel pgx.TxIsoLevel) (context.Context, pgx.Tx, error) {
	outer, ok, err := transactionFromContext(ctx)
	if err != nil {
		return nil, nil, err
	}

	var tx pgx.Tx
	if ok {
		tx, err = outer.Begin(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("savepoint begin failed: %w", err)
		}
	} else {
		tx, err = s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: isoLevel})
		if err != nil {
			return nil, nil, fmt.Errorf("transaction begin failed: %w", err)
		}
	}
	return context.WithValue(ctx, transactionKey, tx), tx, nil
}

func transactionFromContext(ctx context.Context) (pgx.Tx, bool, error) {
	txVal := ctx.Value(transactionKey)
	if txVal == nil {
		return nil, false, nil
	}
	tx, ok := txVal.(pgx.Tx)
	if !ok {
		return nil, false, errInvalidTransaction
	}
	return tx, true, nil
}
