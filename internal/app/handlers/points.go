package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/recipe-exchange/internal/domain/models"
	"github.com/linemk/recipe-exchange/internal/idempotency"
	"github.com/linemk/recipe-exchange/internal/service"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// TopUpRequest - уже авторизованное пополнение; платёжный шлюз вне сервиса.
type TopUpRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

type TransactionsResponse struct {
	Transactions []*models.Transaction `json:"transactions"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// TopUpHandler обрабатывает POST /points/topup.
// Повтор с тем же Idempotency-Key отклоняется, пока ключ не истёк.
func TopUpHandler(log *slog.Logger, pointsService service.PointsService, guard *idempotency.Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TopUpHandler"
		logger := log.With(slog.String("op", op))

		accountID, ok := callerID(logger, w, r)
		if !ok {
			return
		}

		var req TopUpRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if err := guard.Reserve(r.Context(), accountID, key); err != nil {
			if status, _, _ := classify(err); status == http.StatusInternalServerError {
				logger.Error("idempotency store unavailable", slog.Any("error", err))
				writeError(logger, w, http.StatusServiceUnavailable, CodeUnavailable, "idempotency store unavailable")
				return
			}
			respondError(logger, w, err)
			return
		}

		result, err := pointsService.TopUp(r.Context(), accountID, req.Amount)
		observe("topup", err)
		if err != nil {
			if relErr := guard.Release(r.Context(), accountID, key); relErr != nil {
				logger.Error("failed to release idempotency key", slog.Any("error", relErr))
			}
			respondError(logger, w, err)
			return
		}

		writeJSON(logger, w, http.StatusOK, result)
	}
}

// BalanceHandler обрабатывает GET /points/balance.
func BalanceHandler(log *slog.Logger, pointsService service.PointsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.BalanceHandler"
		logger := log.With(slog.String("op", op))

		accountID, ok := callerID(logger, w, r)
		if !ok {
			return
		}

		balance, err := pointsService.Balance(r.Context(), accountID)
		if err != nil {
			respondError(logger, w, err)
			return
		}

		writeJSON(logger, w, http.StatusOK, BalanceResponse{Balance: balance})
	}
}

// TransactionsHandler обрабатывает GET /points/transactions?limit=&offset=.
func TransactionsHandler(log *slog.Logger, pointsService service.PointsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TransactionsHandler"
		logger := log.With(slog.String("op", op))

		accountID, ok := callerID(logger, w, r)
		if !ok {
			return
		}

		page, ok := parsePage(logger, w, r)
		if !ok {
			return
		}
		if page.Limit == 0 {
			page.Limit = service.DefaultPageLimit
		}

		txs, err := pointsService.Transactions(r.Context(), accountID, page.Limit, page.Offset)
		if err != nil {
			respondError(logger, w, err)
			return
		}
		if txs == nil {
			txs = []*models.Transaction{}
		}

		writeJSON(logger, w, http.StatusOK, TransactionsResponse{
			Transactions: txs,
			Limit:        page.Limit,
			Offset:       page.Offset,
		})
	}
}

// ReconcileHandler обрабатывает GET /points/reconcile: сверка баланса с журналом.
func ReconcileHandler(log *slog.Logger, pointsService service.PointsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ReconcileHandler"
		logger := log.With(slog.String("op", op))

		accountID, ok := callerID(logger, w, r)
		if !ok {
			return
		}

		rec, err := pointsService.Reconcile(r.Context(), accountID)
		if err != nil {
			respondError(logger, w, err)
			return
		}

		writeJSON(logger, w, http.StatusOK, rec)
	}
}
