package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/linemk/recipe-exchange/internal/domain/models"
	"github.com/linemk/recipe-exchange/internal/storage"
)

// CatalogService регистрирует рецепты авторов и показывает, чем владеет аккаунт.
type CatalogService interface {
	Publish(ctx context.Context, authorID int64, title string, price int64) (*models.Recipe, error)
	Owned(ctx context.Context, accountID int64) ([]*models.OwnershipRecord, error)
}

type catalogService struct {
	log           *slog.Logger
	atomic        *Atomic
	accountRepo   storage.AccountReader
	recipeRepo    storage.RecipeStorage
	ownershipRepo storage.OwnershipStorage
}

func NewCatalogService(log *slog.Logger, atomic *Atomic, accountRepo storage.AccountReader, recipeRepo storage.RecipeStorage, ownershipRepo storage.OwnershipStorage) CatalogService {
	return &catalogService{
		log:           log,
		atomic:        atomic,
		accountRepo:   accountRepo,
		recipeRepo:    recipeRepo,
		ownershipRepo: ownershipRepo,
	}
}

// Publish создаёт листинг рецепта и в той же транзакции закрепляет его за автором
// записью Authored. Пока владелец - автор, рецепт можно купить.
func (s *catalogService) Publish(ctx context.Context, authorID int64, title string, price int64) (*models.Recipe, error) {
	const op = "service.CatalogService.Publish"
	logger := s.log.With(slog.String("op", op), slog.Int64("authorID", authorID))
	logger.Info("publishing recipe", slog.String("title", title), slog.Int64("price", price))

	if price <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	var recipe *models.Recipe
	err := s.atomic.Do(ctx, op, func(tx *sql.Tx) error {
		if _, err := s.accountRepo.LockAccountByIDTx(ctx, tx, authorID); err != nil {
			return fmt.Errorf("%s: failed to get author: %w", op, translate(err))
		}

		created, err := s.recipeRepo.CreateRecipe(ctx, tx, &models.Recipe{
			Title:    title,
			AuthorID: authorID,
			Price:    price,
		})
		if err != nil {
			return fmt.Errorf("%s: failed to create recipe: %w", op, translate(err))
		}

		if _, err := s.ownershipRepo.Grant(ctx, tx, created.ID, authorID, models.AcquiredAsAuthor); err != nil {
			return fmt.Errorf("%s: failed to grant authorship: %w", op, translate(err))
		}
		recipe = created
		return nil
	})
	if err != nil {
		logger.Error("failed to publish recipe", slog.Any("error", err))
		return nil, err
	}

	logger.Info("recipe published", slog.Int64("recipeID", recipe.ID))
	return recipe, nil
}

func (s *catalogService) Owned(ctx context.Context, accountID int64) ([]*models.OwnershipRecord, error) {
	const op = "service.CatalogService.Owned"

	records, err := s.ownershipRepo.GetOwnershipsByAccountID(ctx, accountID)
	if err != nil {
		s.log.Error("failed to get ownerships", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, translate(err))
	}
	return records, nil
}
