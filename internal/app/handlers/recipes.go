package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/recipe-exchange/internal/domain/models"
	"github.com/linemk/recipe-exchange/internal/service"
)

// PublishRecipeRequest - листинг рецепта; само содержимое хранится вне сервиса.
type PublishRecipeRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Price int64  `json:"price" validate:"required,gt=0"`
}

type OwnedRecipesResponse struct {
	Recipes []*models.OwnershipRecord `json:"recipes"`
}

// PublishRecipeHandler обрабатывает POST /recipes
func PublishRecipeHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PublishRecipeHandler"
		logger := log.With(slog.String("op", op))

		authorID, ok := callerID(logger, w, r)
		if !ok {
			return
		}

		var req PublishRecipeRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		recipe, err := catalogService.Publish(r.Context(), authorID, req.Title, req.Price)
		observe("publish", err)
		if err != nil {
			respondError(logger, w, err)
			return
		}

		writeJSON(logger, w, http.StatusCreated, recipe)
	}
}

// OwnedRecipesHandler обрабатывает GET /recipes/owned
func OwnedRecipesHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OwnedRecipesHandler"
		logger := log.With(slog.String("op", op))

		accountID, ok := callerID(logger, w, r)
		if !ok {
			return
		}

		records, err := catalogService.Owned(r.Context(), accountID)
		if err != nil {
			respondError(logger, w, err)
			return
		}
		if records == nil {
			records = []*models.OwnershipRecord{}
		}

		writeJSON(logger, w, http.StatusOK, OwnedRecipesResponse{Recipes: records})
	}
}
