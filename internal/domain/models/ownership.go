package models

import "time"

// AcquisitionKind - способ, которым аккаунт получил рецепт.
type AcquisitionKind string

const (
	AcquiredByPurchase AcquisitionKind = "purchase"
	AcquiredByTrade    AcquisitionKind = "trade"
	AcquiredAsAuthor   AcquisitionKind = "authored"
)

// OwnershipRecord связывает рецепт с его текущим владельцем.
// У рецепта в каждый момент ровно одна такая запись.
type OwnershipRecord struct {
	RecipeID    int64           `json:"recipeId"`
	AccountID   int64           `json:"accountId"`
	Kind        AcquisitionKind `json:"kind"`
	AcquiredAt  time.Time       `json:"acquiredAt"`
	RecipeTitle string          `json:"title,omitempty"` // заполняется через JOIN с таблицей recipes
}
