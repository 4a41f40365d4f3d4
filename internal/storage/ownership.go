package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/recipe-exchange/internal/domain/models"
)

// OwnershipStorage - единственная точка изменения владения рецептами.
// Каждое изменение - одна запись в строку recipe_ownerships, поэтому рецепт
// никогда не бывает без владельца или с двумя владельцами.
type OwnershipStorage interface {
	// OwnerOf возвращает текущую запись владения или nil, если у рецепта нет владельца.
	OwnerOf(ctx context.Context, recipeID int64) (*models.OwnershipRecord, error)
	// LockOwnerOfTx то же, что OwnerOf, но блокирует строку до конца транзакции.
	LockOwnerOfTx(ctx context.Context, tx *sql.Tx, recipeID int64) (*models.OwnershipRecord, error)
	// Grant выдаёт рецепт, у которого нет владельца или владелец - автор (kind=authored).
	Grant(ctx context.Context, tx *sql.Tx, recipeID, toAccountID int64, kind models.AcquisitionKind) (*models.OwnershipRecord, error)
	// Transfer переназначает рецепт, только если им сейчас владеет fromAccountID.
	Transfer(ctx context.Context, tx *sql.Tx, recipeID, fromAccountID, toAccountID int64, kind models.AcquisitionKind) (*models.OwnershipRecord, error)
	// GetOwnershipsByAccountID возвращает рецепты аккаунта вместе с названиями.
	GetOwnershipsByAccountID(ctx context.Context, accountID int64) ([]*models.OwnershipRecord, error)
}

type ownershipRepository struct {
	db *sql.DB
}

func NewOwnershipRepository(db *sql.DB) OwnershipStorage {
	return &ownershipRepository{db: db}
}

func scanOwnership(row *sql.Row) (*models.OwnershipRecord, error) {
	rec := &models.OwnershipRecord{}
	var kind string
	if err := row.Scan(&rec.RecipeID, &rec.AccountID, &kind, &rec.AcquiredAt); err != nil {
		return nil, err
	}
	rec.Kind = models.AcquisitionKind(kind)
	return rec, nil
}

func (r *ownershipRepository) OwnerOf(ctx context.Context, recipeID int64) (*models.OwnershipRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT recipe_id, account_id, kind, acquired_at FROM recipe_ownerships WHERE recipe_id = $1", recipeID)
	rec, err := scanOwnership(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (r *ownershipRepository) LockOwnerOfTx(ctx context.Context, tx *sql.Tx, recipeID int64) (*models.OwnershipRecord, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT recipe_id, account_id, kind, acquired_at FROM recipe_ownerships WHERE recipe_id = $1 FOR UPDATE NOWAIT", recipeID)
	rec, err := scanOwnership(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, Classify(err)
	}
	return rec, nil
}

func (r *ownershipRepository) Grant(ctx context.Context, tx *sql.Tx, recipeID, toAccountID int64, kind models.AcquisitionKind) (*models.OwnershipRecord, error) {
	// upsert перезаписывает только авторскую запись; чужая покупка или обмен остаются нетронутыми
	query := `INSERT INTO recipe_ownerships (recipe_id, account_id, kind, acquired_at)
	          VALUES ($1, $2, $3, NOW())
	          ON CONFLICT (recipe_id) DO UPDATE
	          SET account_id = EXCLUDED.account_id, kind = EXCLUDED.kind, acquired_at = EXCLUDED.acquired_at
	          WHERE recipe_ownerships.kind = 'authored' AND recipe_ownerships.account_id <> EXCLUDED.account_id
	          RETURNING recipe_id, account_id, kind, acquired_at`
	rec, err := scanOwnership(tx.QueryRowContext(ctx, query, recipeID, toAccountID, string(kind)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlreadyOwned
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return nil, fmt.Errorf("failed to grant ownership: %w", Classify(err))
	}
	return rec, nil
}

func (r *ownershipRepository) Transfer(ctx context.Context, tx *sql.Tx, recipeID, fromAccountID, toAccountID int64, kind models.AcquisitionKind) (*models.OwnershipRecord, error) {
	query := `UPDATE recipe_ownerships
	          SET account_id = $3, kind = $4, acquired_at = NOW()
	          WHERE recipe_id = $1 AND account_id = $2
	          RETURNING recipe_id, account_id, kind, acquired_at`
	rec, err := scanOwnership(tx.QueryRowContext(ctx, query, recipeID, fromAccountID, toAccountID, string(kind)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotOwner
		}
		return nil, fmt.Errorf("failed to transfer ownership: %w", Classify(err))
	}
	return rec, nil
}

func (r *ownershipRepository) GetOwnershipsByAccountID(ctx context.Context, accountID int64) ([]*models.OwnershipRecord, error) {
	query := `
		SELECT o.recipe_id, o.account_id, o.kind, o.acquired_at, r.title
		FROM recipe_ownerships o
		JOIN recipes r ON o.recipe_id = r.id
		WHERE o.account_id = $1
		ORDER BY o.acquired_at DESC`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.OwnershipRecord
	for rows.Next() {
		rec := &models.OwnershipRecord{}
		var kind string
		if err := rows.Scan(&rec.RecipeID, &rec.AccountID, &kind, &rec.AcquiredAt, &rec.RecipeTitle); err != nil {
			return nil, err
		}
		rec.Kind = models.AcquisitionKind(kind)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
