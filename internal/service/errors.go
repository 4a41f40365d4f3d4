package service

import (
	"errors"
	"fmt"

	"github.com/linemk/recipe-exchange/internal/storage"
)

// Ошибки бизнес-логики. Наружу из сервисов выходят только они (обёрнутые через %w),
// ошибки хранилища переводятся в них в translate.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyOwned      = errors.New("recipe already owned")
	ErrNotOwner          = errors.New("account does not own recipe")
	ErrInvalidOffer      = errors.New("invalid trade offer")
	ErrForbidden         = errors.New("operation is not allowed for this account")
	ErrInvalidState      = errors.New("trade offer is not pending")
	ErrOwnershipChanged  = errors.New("recipe ownership changed since the offer was made")
	ErrNotFound          = errors.New("not found")
	ErrStorageConflict   = errors.New("storage conflict, try again")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

var domainErrors = []error{
	ErrInsufficientFunds, ErrAlreadyOwned, ErrNotOwner, ErrInvalidOffer, ErrForbidden,
	ErrInvalidState, ErrOwnershipChanged, ErrNotFound, ErrStorageConflict, ErrInvalidAmount,
}

// translate заменяет ошибки хранилища доменными. Уже доменные ошибки не трогает.
func translate(err error) error {
	if err == nil {
		return nil
	}
	for _, domainErr := range domainErrors {
		if errors.Is(err, domainErr) {
			return err
		}
	}
	switch {
	case errors.Is(err, storage.ErrAccountNotFound),
		errors.Is(err, storage.ErrRecipeNotFound),
		errors.Is(err, storage.ErrTradeNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, storage.ErrNotOwner):
		return fmt.Errorf("%w: %w", ErrNotOwner, err)
	case errors.Is(err, storage.ErrAlreadyOwned):
		return fmt.Errorf("%w: %w", ErrAlreadyOwned, err)
	case errors.Is(err, storage.ErrConflict):
		return fmt.Errorf("%w: %w", ErrStorageConflict, err)
	}
	return err
}
