package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/linemk/recipe-exchange/internal/domain/models"
)

// AccountReader читает и блокирует аккаунты, но не меняет баланс.
// Его получают все сервисы, кроме BalanceService.
type AccountReader interface {
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	// LockAccountByIDTx блокирует строку аккаунта до конца транзакции.
	LockAccountByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Account, error)
}

// AccountWriter меняет кэш баланса. Запись в журнал делает вызывающий в той же транзакции.
type AccountWriter interface {
	// AddToBalance прибавляет delta к балансу и возвращает новое значение.
	AddToBalance(ctx context.Context, tx *sql.Tx, id int64, delta int64) (int64, error)
}

// AccountStorage - полный доступ к таблице аккаунтов, нужен только BalanceService.
type AccountStorage interface {
	AccountReader
	AccountWriter
}

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountStorage {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	account := &models.Account{}
	row := r.db.QueryRowContext(ctx, "SELECT id, balance FROM accounts WHERE id = $1", id)
	if err := row.Scan(&account.ID, &account.Balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (r *accountRepository) LockAccountByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Account, error) {
	account := &models.Account{}

	row := tx.QueryRowContext(ctx, "SELECT id, balance FROM accounts WHERE id = $1 FOR UPDATE NOWAIT", id)
	if err := row.Scan(&account.ID, &account.Balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, Classify(err)
	}
	return account, nil
}

// вычисление на стороне БД, CHECK (balance >= 0) страхует от ухода в минус
func (r *accountRepository) AddToBalance(ctx context.Context, tx *sql.Tx, id int64, delta int64) (int64, error) {
	var balance int64
	row := tx.QueryRowContext(ctx, "UPDATE accounts SET balance = balance + $1 WHERE id = $2 RETURNING balance", delta, id)
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, Classify(err)
	}
	return balance, nil
}
