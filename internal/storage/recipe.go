package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/recipe-exchange/internal/domain/models"
)

// RecipeStorage описывает методы для работы с каталогом рецептов.
type RecipeStorage interface {
	GetRecipeByID(ctx context.Context, id int64) (*models.Recipe, error)
	// LockRecipeByIDTx перечитывает цену и автора под блокировкой строки рецепта.
	LockRecipeByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Recipe, error)
	CreateRecipe(ctx context.Context, tx *sql.Tx, recipe *models.Recipe) (*models.Recipe, error)
}

type recipeRepository struct {
	db *sql.DB
}

func NewRecipeRepository(db *sql.DB) RecipeStorage {
	return &recipeRepository{db: db}
}

func (r *recipeRepository) GetRecipeByID(ctx context.Context, id int64) (*models.Recipe, error) {
	recipe := &models.Recipe{}
	row := r.db.QueryRowContext(ctx, "SELECT id, title, author_id, price FROM recipes WHERE id = $1", id)
	if err := row.Scan(&recipe.ID, &recipe.Title, &recipe.AuthorID, &recipe.Price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}
	return recipe, nil
}

func (r *recipeRepository) LockRecipeByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Recipe, error) {
	recipe := &models.Recipe{}
	row := tx.QueryRowContext(ctx, "SELECT id, title, author_id, price FROM recipes WHERE id = $1 FOR UPDATE NOWAIT", id)
	if err := row.Scan(&recipe.ID, &recipe.Title, &recipe.AuthorID, &recipe.Price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, Classify(err)
	}
	return recipe, nil
}

func (r *recipeRepository) CreateRecipe(ctx context.Context, tx *sql.Tx, recipe *models.Recipe) (*models.Recipe, error) {
	query := "INSERT INTO recipes (title, author_id, price) VALUES ($1, $2, $3) RETURNING id"
	if err := tx.QueryRowContext(ctx, query, recipe.Title, recipe.AuthorID, recipe.Price).Scan(&recipe.ID); err != nil {
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}
	return recipe, nil
}
