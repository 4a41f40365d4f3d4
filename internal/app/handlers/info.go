package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/recipe-exchange/internal/service"
)

// InfoHandler обрабатывает запрос GET /api/info.
// Идентификатор аккаунта берётся из контекста (его кладёт JWT‑middleware).
func InfoHandler(log *slog.Logger, infoService service.InfoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.InfoHandler"
		logger := log.With(slog.String("op", op))

		accountID, ok := callerID(logger, w, r)
		if !ok {
			return
		}

		info, err := infoService.GetInfo(r.Context(), accountID)
		if err != nil {
			respondError(logger, w, err)
			return
		}

		writeJSON(logger, w, http.StatusOK, info)
	}
}
