package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gpu-market/internal/gpumarket/data"
	"gpu-market/pkg/logging"
)

type Wallet struct {
	transactionManager TransactionManager
	repository         BalanceRepository
	logger             *logging.ZapLogger
}

func NewWallet(transactionManager TransactionManager, repository BalanceRepository, logger *logging.ZapLogger) *Wallet {
	return &Wallet{
		transactionManager: transactionManager,
		repository:         repository,
		logger:             logger,
	}
}

func (w *Wallet) GetBalance(ctx context.Context, userID int) (decimal.Decimal, error) {
	balance, err := w.repository.GetUserBalance(ctx, userID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("getting user balance failed: %w", err)
	}
	return balance, nil
}

func (w *Wallet) GetTransactions(ctx context.Context, userID int) ([]data.Transaction, error) {
	transactions, err := w.repository.GetUserTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting user transactions failed: %w", err)
	}
	return transactions, nil
}

// Credit adds amount to the balance and appends the matching ledger row.
// It must run inside a transaction.
func (w *Wallet) Credit(
	ctx context.Context,
	userID int,
	amount decimal.Decimal,
	kind data.TransactionType,
	reference string,
) error {
	return w.apply(ctx, userID, amount, kind, reference)
}

// Debit subtracts amount from the balance and appends a charge row. It must
// run inside a transaction.
func (w *Wallet) Debit(ctx context.Context, userID int, amount decimal.Decimal, reference string) error {
	return w.apply(ctx, userID, amount.Neg(), data.ChargeTransaction, reference)
}

func (w *Wallet) apply(
	ctx context.Context,
	userID int,
	delta decimal.Decimal,
	kind data.TransactionType,
	reference string,
) error {
	w.logger.DebugCtx(
		ctx,
		"balance change",
		zap.Int("userID", userID),
		zap.String("type", string(kind)),
		zap.String("delta", delta.String()),
	)
	balance, err := w.repository.LockUserBalance(ctx, userID)
	if err != nil {
		return fmt.Errorf("getting user balance failed: %w", err)
	}
	newBalance := balance.Add(delta)
	if newBalance.IsNegative() {
		return ErrNotEnoughBalance
	}
	if err := w.repository.SetUserBalance(ctx, userID, newBalance); err != nil {
		return fmt.Errorf("setting user balance failed: %w", err)
	}
	return w.repository.InsertTransaction(ctx, data.Transaction{ //nolint:wrapcheck // unnecessary
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      kind,
		Amount:    delta.Abs(),
		Reference: reference,
		CreatedAt: time.Now(),
	})
}

// Refund returns amount to the user in its own transaction.
func (w *Wallet) Refund(ctx context.Context, userID int, amount decimal.Decimal, reference string) error {
	return w.transactionManager.DoWithTransaction(ctx, func(ctx context.Context) error {
		return w.Credit(ctx, userID, amount, data.RefundTransaction, reference)
	})
}
