package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/recipe-exchange/internal/domain/models"
)

// TransactionReader читает журнал баллов.
type TransactionReader interface {
	// GetTransactionsByAccountID возвращает страницу журнала, новые записи первыми.
	GetTransactionsByAccountID(ctx context.Context, accountID int64, limit, offset int) ([]*models.Transaction, error)
	// SumByAccountID считает сумму всех записей аккаунта.
	SumByAccountID(ctx context.Context, accountID int64) (int64, error)
}

// TransactionStorage описывает методы для работы с журналом баллов.
// Записи только добавляются, UPDATE и DELETE не предусмотрены.
type TransactionStorage interface {
	TransactionReader
	// CreateTransaction добавляет запись и заполняет ID и CreatedAt.
	CreateTransaction(ctx context.Context, tx *sql.Tx, t *models.Transaction) (*models.Transaction, error)
}

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) TransactionStorage {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) CreateTransaction(ctx context.Context, tx *sql.Tx, t *models.Transaction) (*models.Transaction, error) {
	query := `INSERT INTO transactions (account_id, amount, kind, recipe_id, created_at)
	          VALUES ($1, $2, $3, $4, NOW())
	          RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query, t.AccountID, t.Amount, string(t.Kind), t.RecipeID).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", Classify(err))
	}
	return t, nil
}

func (r *transactionRepository) GetTransactionsByAccountID(ctx context.Context, accountID int64, limit, offset int) ([]*models.Transaction, error) {
	query := `
		SELECT id, account_id, amount, kind, recipe_id, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		t := &models.Transaction{}
		var kind string
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &kind, &t.RecipeID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Kind = models.TransactionKind(kind)
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *transactionRepository) SumByAccountID(ctx context.Context, accountID int64) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE account_id = $1", accountID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return sum, nil
}
