package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/recipe-exchange/internal/domain/models"
	"github.com/linemk/recipe-exchange/internal/events"
	"github.com/linemk/recipe-exchange/internal/storage"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// TopUpResult - новый баланс и запись журнала о пополнении.
type TopUpResult struct {
	Balance       int64 `json:"balance"`
	TransactionID int64 `json:"transactionId"`
}

// Reconciliation сравнивает кэш баланса с суммой журнала.
type Reconciliation struct {
	AccountID  int64 `json:"accountId"`
	Balance    int64 `json:"balance"`
	LedgerSum  int64 `json:"ledgerSum"`
	Consistent bool  `json:"consistent"`
}

// PointsService - операции с баллами, доступные вызывающему аккаунту.
type PointsService interface {
	TopUp(ctx context.Context, accountID, amount int64) (*TopUpResult, error)
	Balance(ctx context.Context, accountID int64) (int64, error)
	Transactions(ctx context.Context, accountID int64, limit, offset int) ([]*models.Transaction, error)
	Reconcile(ctx context.Context, accountID int64) (*Reconciliation, error)
}

type pointsService struct {
	log         *slog.Logger
	atomic      *Atomic
	balance     BalanceService
	accountRepo storage.AccountReader
	txRepo      storage.TransactionReader
	publisher   events.Publisher
}

func NewPointsService(log *slog.Logger, atomic *Atomic, balance BalanceService, accountRepo storage.AccountReader, txRepo storage.TransactionReader, publisher events.Publisher) PointsService {
	return &pointsService{
		log:         log,
		atomic:      atomic,
		balance:     balance,
		accountRepo: accountRepo,
		txRepo:      txRepo,
		publisher:   publisher,
	}
}

// TopUp зачисляет уже авторизованную сумму на счёт.
func (s *pointsService) TopUp(ctx context.Context, accountID, amount int64) (*TopUpResult, error) {
	const op = "service.PointsService.TopUp"
	logger := s.log.With(slog.String("op", op), slog.Int64("accountID", accountID), slog.Int64("amount", amount))
	logger.Info("topping up points")

	if amount <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	var posting *Posting
	err := s.atomic.Do(ctx, op, func(tx *sql.Tx) error {
		p, err := s.balance.Credit(ctx, tx, accountID, amount, models.TransactionTopUp, nil)
		if err != nil {
			return err
		}
		posting = p
		return nil
	})
	if err != nil {
		logger.Error("failed to top up", slog.Any("error", err))
		return nil, err
	}

	notify(ctx, logger, s.publisher, events.SubjectPointsToppedUp, events.PointsToppedUp{
		AccountID:     accountID,
		Amount:        amount,
		Balance:       posting.Balance,
		TransactionID: posting.Transaction.ID,
		OccurredAt:    time.Now().UTC(),
	})

	logger.Info("points topped up", slog.Int64("balance", posting.Balance))
	return &TopUpResult{Balance: posting.Balance, TransactionID: posting.Transaction.ID}, nil
}

func (s *pointsService) Balance(ctx context.Context, accountID int64) (int64, error) {
	const op = "service.PointsService.Balance"

	account, err := s.accountRepo.GetAccountByID(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, translate(err))
	}
	return account.Balance, nil
}

// Transactions отдаёт журнал аккаунта от новых записей к старым.
func (s *pointsService) Transactions(ctx context.Context, accountID int64, limit, offset int) ([]*models.Transaction, error) {
	const op = "service.PointsService.Transactions"

	if _, err := s.accountRepo.GetAccountByID(ctx, accountID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, translate(err))
	}

	limit, offset = normalizePage(limit, offset)
	txs, err := s.txRepo.GetTransactionsByAccountID(ctx, accountID, limit, offset)
	if err != nil {
		s.log.Error("failed to get transactions", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, translate(err))
	}
	return txs, nil
}

// Reconcile проверяет, что кэш баланса совпадает с суммой журнала.
// Расхождение логируется как ошибка, но сам отчёт возвращается без ошибки.
func (s *pointsService) Reconcile(ctx context.Context, accountID int64) (*Reconciliation, error) {
	const op = "service.PointsService.Reconcile"

	account, err := s.accountRepo.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translate(err))
	}
	sum, err := s.txRepo.SumByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translate(err))
	}

	rec := &Reconciliation{
		AccountID:  accountID,
		Balance:    account.Balance,
		LedgerSum:  sum,
		Consistent: account.Balance == sum,
	}
	if !rec.Consistent {
		s.log.Error("balance does not match ledger",
			slog.String("op", op),
			slog.Int64("accountID", accountID),
			slog.Int64("balance", account.Balance),
			slog.Int64("ledgerSum", sum),
		)
	}
	return rec, nil
}

// normalizePage приводит limit к 1..MaxPageLimit, отрицательный offset к нулю.
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
