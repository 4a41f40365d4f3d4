package models

// Account представляет владельца баланса баллов
type Account struct {
	ID      int64
	Balance int64 // кэш суммы транзакций, не может быть отрицательным
}
