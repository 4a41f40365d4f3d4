package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/recipe-exchange/internal/service"
)

// BuyHandler обрабатывает POST /recipes/{id}/buy
func BuyHandler(log *slog.Logger, purchaseService service.PurchaseService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.BuyHandler"
		logger := log.With(slog.String("op", op))

		raw := chi.URLParam(r, "id")
		if raw == "" {
			logger.Error("id parameter is missing")
			writeError(logger, w, http.StatusBadRequest, CodeInvalidRequest, "recipe id is required")
			return
		}
		recipeID, ok := parseID(logger, w, raw)
		if !ok {
			return
		}

		buyerID, ok := callerID(logger, w, r)
		if !ok {
			return
		}

		result, err := purchaseService.Buy(r.Context(), buyerID, recipeID)
		observe("purchase", err)
		if err != nil {
			respondError(logger, w, err)
			return
		}

		writeJSON(logger, w, http.StatusOK, result)
	}
}
