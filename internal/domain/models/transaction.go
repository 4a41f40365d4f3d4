package models

import "time"

// TransactionKind - вид операции, изменившей баланс.
type TransactionKind string

const (
	TransactionTopUp    TransactionKind = "topup"
	TransactionPurchase TransactionKind = "purchase"
	TransactionSale     TransactionKind = "sale"
)

// Transaction представляет неизменяемую запись журнала баллов.
// Amount положительный для зачисления и отрицательный для списания.
type Transaction struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"accountId"`
	Amount    int64           `json:"amount"`
	Kind      TransactionKind `json:"kind"`
	RecipeID  *int64          `json:"recipeId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
