package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/linemk/recipe-exchange/internal/domain/models"
	"github.com/linemk/recipe-exchange/internal/storage"
)

// Posting - результат одной операции над балансом: запись журнала и баланс после неё.
type Posting struct {
	Transaction *models.Transaction
	Balance     int64
}

// BalanceService - единственный, кто меняет баланс. Каждая операция добавляет ровно одну
// запись в журнал и обновляет кэш баланса в той же транзакции tx.
type BalanceService interface {
	// LockAccounts блокирует строки аккаунтов по возрастанию id, чтобы встречные
	// операции над одной парой аккаунтов не ждали друг друга по кругу.
	LockAccounts(ctx context.Context, tx *sql.Tx, accountIDs ...int64) (map[int64]*models.Account, error)
	Credit(ctx context.Context, tx *sql.Tx, accountID, amount int64, kind models.TransactionKind, recipeID *int64) (*Posting, error)
	Debit(ctx context.Context, tx *sql.Tx, accountID, amount int64, kind models.TransactionKind, recipeID *int64) (*Posting, error)
}

type balanceService struct {
	log         *slog.Logger
	accountRepo storage.AccountStorage
	txRepo      storage.TransactionStorage
}

func NewBalanceService(log *slog.Logger, accountRepo storage.AccountStorage, txRepo storage.TransactionStorage) BalanceService {
	return &balanceService{
		log:         log,
		accountRepo: accountRepo,
		txRepo:      txRepo,
	}
}

func (s *balanceService) LockAccounts(ctx context.Context, tx *sql.Tx, accountIDs ...int64) (map[int64]*models.Account, error) {
	const op = "service.BalanceService.LockAccounts"

	ids := slices.Clone(accountIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	accounts := make(map[int64]*models.Account, len(ids))
	for _, id := range ids {
		account, err := s.accountRepo.LockAccountByIDTx(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to lock account %d: %w", op, id, translate(err))
		}
		accounts[id] = account
	}
	return accounts, nil
}

func (s *balanceService) Credit(ctx context.Context, tx *sql.Tx, accountID, amount int64, kind models.TransactionKind, recipeID *int64) (*Posting, error) {
	const op = "service.BalanceService.Credit"

	if amount <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}
	return s.post(ctx, tx, op, accountID, amount, kind, recipeID)
}

func (s *balanceService) Debit(ctx context.Context, tx *sql.Tx, accountID, amount int64, kind models.TransactionKind, recipeID *int64) (*Posting, error) {
	const op = "service.BalanceService.Debit"

	if amount <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}
	return s.post(ctx, tx, op, accountID, -amount, kind, recipeID)
}

// post применяет изменение со знаком: положительное - зачисление, отрицательное - списание.
func (s *balanceService) post(ctx context.Context, tx *sql.Tx, op string, accountID, delta int64, kind models.TransactionKind, recipeID *int64) (*Posting, error) {
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("accountID", accountID),
		slog.Int64("delta", delta),
		slog.String("kind", string(kind)),
	)

	// повторная блокировка строки внутри той же транзакции не ждёт
	account, err := s.accountRepo.LockAccountByIDTx(ctx, tx, accountID)
	if err != nil {
		logger.Error("failed to lock account", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock account: %w", op, translate(err))
	}

	if account.Balance+delta < 0 {
		logger.Warn("insufficient funds", slog.Int64("balance", account.Balance))
		return nil, fmt.Errorf("%s: %w", op, ErrInsufficientFunds)
	}

	balance, err := s.accountRepo.AddToBalance(ctx, tx, accountID, delta)
	if err != nil {
		logger.Error("failed to update balance", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update balance: %w", op, translate(err))
	}

	record, err := s.txRepo.CreateTransaction(ctx, tx, &models.Transaction{
		AccountID: accountID,
		Amount:    delta,
		Kind:      kind,
		RecipeID:  recipeID,
	})
	if err != nil {
		logger.Error("failed to record transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to record transaction: %w", op, translate(err))
	}

	logger.Debug("balance updated", slog.Int64("balance", balance))
	return &Posting{Transaction: record, Balance: balance}, nil
}
