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

// RecipeCatalog отдаёт цену и автора рецепта. Цена, прочитанная под блокировкой, считается окончательной.
type RecipeCatalog interface {
	GetRecipeByID(ctx context.Context, id int64) (*models.Recipe, error)
	LockRecipeByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Recipe, error)
}

// PurchaseResult - итог покупки для покупателя.
type PurchaseResult struct {
	RecipeID      int64 `json:"recipeId"`
	Price         int64 `json:"price"`
	Balance       int64 `json:"balance"`
	TransactionID int64 `json:"transactionId"`
}

type PurchaseService interface {
	Buy(ctx context.Context, buyerID, recipeID int64) (*PurchaseResult, error)
}

type purchaseService struct {
	log           *slog.Logger
	atomic        *Atomic
	balance       BalanceService
	ownershipRepo storage.OwnershipStorage
	catalog       RecipeCatalog
	publisher     events.Publisher
}

func NewPurchaseService(log *slog.Logger, atomic *Atomic, balance BalanceService, ownershipRepo storage.OwnershipStorage, catalog RecipeCatalog, publisher events.Publisher) PurchaseService {
	return &purchaseService{
		log:           log,
		atomic:        atomic,
		balance:       balance,
		ownershipRepo: ownershipRepo,
		catalog:       catalog,
		publisher:     publisher,
	}
}

// Buy списывает цену с покупателя, зачисляет её автору и выдаёт рецепт покупателю.
// Все три шага - одна транзакция, при любой ошибке не остаётся ни одного из эффектов.
func (s *purchaseService) Buy(ctx context.Context, buyerID, recipeID int64) (*PurchaseResult, error) {
	const op = "service.PurchaseService.Buy"
	logger := s.log.With(slog.String("op", op), slog.Int64("buyerID", buyerID), slog.Int64("recipeID", recipeID))
	logger.Info("starting purchase")

	var (
		result   *PurchaseResult
		authorID int64
	)
	err := s.atomic.Do(ctx, op, func(tx *sql.Tx) error {
		// Перечитываем цену под блокировкой рецепта: покупки одного рецепта идут по очереди
		recipe, err := s.catalog.LockRecipeByIDTx(ctx, tx, recipeID)
		if err != nil {
			return fmt.Errorf("%s: failed to get recipe: %w", op, translate(err))
		}
		authorID = recipe.AuthorID

		accounts, err := s.balance.LockAccounts(ctx, tx, buyerID, recipe.AuthorID)
		if err != nil {
			return err
		}

		// Проверяем, достаточно ли средств
		if accounts[buyerID].Balance < recipe.Price {
			logger.Warn("insufficient funds", slog.Int64("balance", accounts[buyerID].Balance), slog.Int64("price", recipe.Price))
			return fmt.Errorf("%s: %w", op, ErrInsufficientFunds)
		}

		// автор всегда владеет своим рецептом
		if recipe.AuthorID == buyerID {
			return fmt.Errorf("%s: %w", op, ErrAlreadyOwned)
		}

		owner, err := s.ownershipRepo.LockOwnerOfTx(ctx, tx, recipeID)
		if err != nil {
			return fmt.Errorf("%s: failed to get owner: %w", op, translate(err))
		}
		if owner != nil && !purchasable(owner, recipe) {
			logger.Warn("recipe already owned", slog.Int64("ownerID", owner.AccountID))
			return fmt.Errorf("%s: %w", op, ErrAlreadyOwned)
		}

		debit, err := s.balance.Debit(ctx, tx, buyerID, recipe.Price, models.TransactionPurchase, &recipeID)
		if err != nil {
			return err
		}

		// вся цена уходит автору, комиссии платформы нет
		if _, err := s.balance.Credit(ctx, tx, recipe.AuthorID, recipe.Price, models.TransactionSale, &recipeID); err != nil {
			return err
		}

		if _, err := s.ownershipRepo.Grant(ctx, tx, recipeID, buyerID, models.AcquiredByPurchase); err != nil {
			return fmt.Errorf("%s: failed to grant ownership: %w", op, translate(err))
		}

		result = &PurchaseResult{
			RecipeID:      recipeID,
			Price:         recipe.Price,
			Balance:       debit.Balance,
			TransactionID: debit.Transaction.ID,
		}
		return nil
	})
	if err != nil {
		logger.Error("purchase failed", slog.Any("error", err))
		return nil, err
	}

	notify(ctx, logger, s.publisher, events.SubjectRecipePurchased, events.RecipePurchased{
		RecipeID:      recipeID,
		BuyerID:       buyerID,
		AuthorID:      authorID,
		Price:         result.Price,
		TransactionID: result.TransactionID,
		OccurredAt:    time.Now().UTC(),
	})

	logger.Info("purchase completed successfully", slog.Int64("balance", result.Balance))
	return result, nil
}

// purchasable - рецепт ещё у автора (авторская запись), значит его можно купить.
func purchasable(owner *models.OwnershipRecord, recipe *models.Recipe) bool {
	return owner.Kind == models.AcquiredAsAuthor && owner.AccountID == recipe.AuthorID
}
