package dbrepository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gpu-market/internal/gpumarket/data"
	"gpu-market/pkg/logging"
)

const (
	invalidUserID = -1

	uniqueViolationCode = "23505"
)

type DBStorage interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) (pgx.Row, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryValue(ctx context.Context, query string, args []any, dest []any) error
}

type DBRepository struct {
	storage DBStorage
	logger  *logging.ZapLogger
}

func New(storage DBStorage, logger *logging.ZapLogger) *DBRepository {
	return &DBRepository{
		storage: storage,
		logger:  logger,
	}
}

//go:embed sql/insert_user.sql
var insertUserQuery string

func (db *DBRepository) InsertUser(ctx context.Context, user *data.User) error {
	err := db.storage.QueryValue(
		ctx,
		insertUserQuery,
		[]any{user.Username, user.Email, user.PasswordHash},
		[]any{&user.ID, &user.Balance, &user.CreatedAt},
	)
	if err != nil {
		user.ID = invalidUserID
		return handleSQLError(err)
	}
	return nil
}

//go:embed sql/select_user_by_username.sql
var selectUserByUsernameQuery string

func (db *DBRepository) GetUserByUsername(ctx context.Context, username string) (data.User, error) {
	return db.selectUser(ctx, selectUserByUsernameQuery, username)
}

//go:embed sql/select_user.sql
var selectUserQuery string

func (db *DBRepository) GetUser(ctx context.Context, userID int) (data.User, error) {
	return db.selectUser(ctx, selectUserQuery, userID)
}

func (db *DBRepository) selectUser(ctx context.Context, query string, arg any) (data.User, error) {
	var user data.User
	err := db.storage.QueryValue(
		ctx,
		query,
		[]any{arg},
		[]any{&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Balance, &user.CreatedAt},
	)
	if err != nil {
		return data.User{}, handleSQLError(err)
	}
	return user, nil
}

//go:embed sql/select_user_balance.sql
var selectUserBalanceQuery string

func (db *DBRepository) GetUserBalance(ctx context.Context, userID int) (decimal.Decimal, error) {
	return db.selectBalance(ctx, selectUserBalanceQuery, userID)
}

//go:embed sql/select_user_balance_for_update.sql
var selectUserBalanceForUpdateQuery string

// LockUserBalance reads the balance and holds a row lock on the user until
// the surrounding transaction ends.
func (db *DBRepository) LockUserBalance(ctx context.Context, userID int) (decimal.Decimal, error) {
	return db.selectBalance(ctx, selectUserBalanceForUpdateQuery, userID)
}

func (db *DBRepository) selectBalance(ctx context.Context, query string, userID int) (decimal.Decimal, error) {
	var t *decimal.Decimal
	err := db.storage.QueryValue(ctx, query, []any{userID}, []any{&t})
	if err != nil {
		return decimal.Decimal{}, handleSQLError(err)
	}
	if t == nil {
		return decimal.Zero, nil
	}
	return *t, nil
}

//go:embed sql/update_user_balance.sql
var updateUserBalanceQuery string

func (db *DBRepository) SetUserBalance(ctx context.Context, userID int, value decimal.Decimal) error {
	tag, err := db.storage.Exec(ctx, updateUserBalanceQuery, userID, value)
	if err != nil {
		return handleSQLError(err)
	}
	if tag.RowsAffected() == 0 {
		return data.ErrNotFound
	}
	return nil
}

//go:embed sql/insert_transaction.sql
var insertTransactionQuery string

func (db *DBRepository) InsertTransaction(ctx context.Context, transaction data.Transaction) error {
	_, err := db.storage.Exec(
		ctx,
		insertTransactionQuery,
		transaction.ID,
		transaction.UserID,
		string(transaction.Type),
		transaction.Amount,
		transaction.Reference,
		transaction.CreatedAt,
	)
	if err != nil {
		return handleSQLError(err)
	}
	return nil
}

//go:embed sql/select_transactions.sql
var selectTransactionsQuery string

func (db *DBRepository) GetUserTransactions(ctx context.Context, userID int) ([]data.Transaction, error) {
	rows, err := db.storage.Query(ctx, selectTransactionsQuery, userID)
	if err != nil {
		return nil, handleSQLError(err)
	}
	defer rows.Close()

	result := make([]data.Transaction, 0)
	for rows.Next() {
		transaction := data.Transaction{
			UserID: userID,
		}
		err := rows.Scan(
			&transaction.ID,
			&transaction.Type,
			&transaction.Amount,
			&transaction.Reference,
			&transaction.CreatedAt,
		)
		if err != nil {
			return nil, handleSQLError(err)
		}
		result = append(result, transaction)
	}
	if err = rows.Err(); err != nil {
		return nil, handleSQLError(err)
	}
	return result, nil
}

//go:embed sql/insert_order.sql
var insertOrderQuery string

func (db *DBRepository) InsertOrder(ctx context.Context, order *data.Order) error {
	_, err := db.storage.Exec(
		ctx,
		insertOrderQuery,
		order.ID,
		order.UserID,
		order.PartnerOrderID,
		order.OfferID,
		order.Status,
		order.PriceClient,
		order.PriceProvider,
		order.Hours,
		string(order.PaymentProvider),
		order.CreatedAt,
	)
	if err != nil {
		return handleSQLError(err)
	}
	return nil
}

//go:embed sql/select_orders.sql
var selectOrdersQuery string

// GetUserOrders returns the newest orders of the user first. A non-positive
// limit returns all of them.
func (db *DBRepository) GetUserOrders(ctx context.Context, userID int, limit int) ([]data.Order, error) {
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}
	rows, err := db.storage.Query(ctx, selectOrdersQuery, userID, limitArg)
	if err != nil {
		return nil, handleSQLError(err)
	}
	defer rows.Close()

	result := make([]data.Order, 0)
	for rows.Next() {
		order := data.Order{
			UserID: userID,
		}
		err := rows.Scan(
			&order.ID,
			&order.PartnerOrderID,
			&order.OfferID,
			&order.Status,
			&order.PriceClient,
			&order.PriceProvider,
			&order.Hours,
			&order.PaymentProvider,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, handleSQLError(err)
		}
		result = append(result, order)
	}
	if err = rows.Err(); err != nil {
		return nil, handleSQLError(err)
	}
	return result, nil
}

//go:embed sql/select_unsettled_orders.sql
var selectUnsettledOrdersQuery string

// GetUnsettledOrders returns up to limit orders whose status is not one of
// settledStatuses (compared case-insensitively). Orders never synced come
// first, then the least recently synced ones.
func (db *DBRepository) GetUnsettledOrders(
	ctx context.Context,
	limit int,
	settledStatuses []string,
) ([]data.Order, error) {
	rows, err := db.storage.Query(ctx, selectUnsettledOrdersQuery, settledStatuses, limit)
	if err != nil {
		return nil, handleSQLError(err)
	}
	defer rows.Close()

	result := make([]data.Order, 0)
	for rows.Next() {
		var order data.Order
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.PartnerOrderID,
			&order.OfferID,
			&order.Status,
			&order.PriceClient,
			&order.PriceProvider,
			&order.Hours,
			&order.PaymentProvider,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, handleSQLError(err)
		}
		result = append(result, order)
	}
	if err = rows.Err(); err != nil {
		return nil, handleSQLError(err)
	}
	return result, nil
}

//go:embed sql/update_order_status.sql
var updateOrderStatusQuery string

func (db *DBRepository) SetOrderStatus(ctx context.Context, orderID string, status string) error {
	db.logger.DebugCtx(ctx, "setting order status", zap.String("orderID", orderID), zap.String("status", status))
	tag, err := db.storage.Exec(ctx, updateOrderStatusQuery, orderID, status)
	if err != nil {
		return handleSQLError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", orderID, data.ErrNotFound)
	}
	return nil
}

//go:embed sql/update_order_synced.sql
var updateOrderSyncedQuery string

// MarkOrderSynced records a status poll that did not change the order.
func (db *DBRepository) MarkOrderSynced(ctx context.Context, orderID string) error {
	_, err := db.storage.Exec(ctx, updateOrderSyncedQuery, orderID)
	if err != nil {
		return handleSQLError(err)
	}
	return nil
}

//go:embed sql/insert_webhook_event.sql
var insertWebhookEventQuery string

// InsertWebhookEvent records a payment event id. A repeated id yields
// data.ErrUniqueConstraintViolation.
func (db *DBRepository) InsertWebhookEvent(ctx context.Context, provider data.PaymentProvider, eventID string) error {
	_, err := db.storage.Exec(ctx, insertWebhookEventQuery, string(provider), eventID)
	if err != nil {
		return handleSQLError(err)
	}
	return nil
}

//go:embed sql/delete_webhook_event.sql
var deleteWebhookEventQuery string

func (db *DBRepository) DeleteWebhookEvent(ctx context.Context, provider data.PaymentProvider, eventID string) error {
	_, err := db.storage.Exec(ctx, deleteWebhookEventQuery, string(provider), eventID)
	if err != nil {
		return handleSQLError(err)
	}
	return nil
}

func handleSQLError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return data.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolationCode {
			return &data.UniqueViolationError{Constraint: pgErr.ConstraintName}
		}
	}
	return err
}
