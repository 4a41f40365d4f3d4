package storage

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrAccountNotFound = errors.New("no account row with this id")
	ErrRecipeNotFound  = errors.New("no recipe row with this id")
	ErrTradeNotFound   = errors.New("no trade offer row with this id")
	ErrNotOwner        = errors.New("ownership row belongs to another account")
	ErrAlreadyOwned    = errors.New("ownership row is held by a non-author")
	// ErrConflict - строку держит другая транзакция либо БД не смогла сериализовать запись.
	// Операцию можно безопасно повторить с нуля.
	ErrConflict = errors.New("storage conflict")
)

// коды postgres, после которых транзакцию можно повторить
const (
	pqLockNotAvailable     = "55P03"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
)

// Classify переводит ошибки конкурентного доступа драйвера в ErrConflict,
// остальные ошибки возвращает без изменений.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqLockNotAvailable, pqSerializationFailure, pqDeadlockDetected:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
