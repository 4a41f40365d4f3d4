package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/linemk/recipe-exchange/internal/domain/models"
	"github.com/linemk/recipe-exchange/internal/service"
)

// OfferRequest - предложение обмена от вызывающего аккаунта.
type OfferRequest struct {
	OfferedRecipeID   int64 `json:"offeredRecipeId" validate:"required,gt=0"`
	RequestedUserID   int64 `json:"requestedUserId" validate:"required,gt=0"`
	RequestedRecipeID int64 `json:"requestedRecipeId" validate:"required,gt=0"`
}

type TradesResponse struct {
	Trades []*models.TradeOffer `json:"trades"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// OfferHandler обрабатывает POST /trades/offer
func OfferHandler(log *slog.Logger, tradeService service.TradeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OfferHandler"
		logger := log.With(slog.String("op", op))

		accountID, ok := callerID(logger, w, r)
		if !ok {
			return
		}

		var req OfferRequest
		if !decodeAndValidate(logger, w, r, &req) {
			return
		}

		trade, err := tradeService.Offer(r.Context(), service.OfferRequest{
			OfferingAccountID:  accountID,
			OfferedRecipeID:    req.OfferedRecipeID,
			RequestedAccountID: req.RequestedUserID,
			RequestedRecipeID:  req.RequestedRecipeID,
		})
		observe("trade_offer", err)
		if err != nil {
			respondError(logger, w, err)
			return
		}

		writeJSON(logger, w, http.StatusCreated, trade)
	}
}

type tradeTransition func(ctx context.Context, tradeID uuid.UUID, actingAccountID int64) (*models.TradeOffer, error)

// AcceptTradeHandler обрабатывает POST /trades/{id}/accept
func AcceptTradeHandler(log *slog.Logger, tradeService service.TradeService) http.HandlerFunc {
	return tradeActionHandler(log, "handlers.AcceptTradeHandler", "trade_accept", tradeService.Accept)
}

// DeclineTradeHandler обрабатывает POST /trades/{id}/decline
func DeclineTradeHandler(log *slog.Logger, tradeService service.TradeService) http.HandlerFunc {
	return tradeActionHandler(log, "handlers.DeclineTradeHandler", "trade_decline", tradeService.Decline)
}

// CancelTradeHandler обрабатывает POST /trades/{id}/cancel
func CancelTradeHandler(log *slog.Logger, tradeService service.TradeService) http.HandlerFunc {
	return tradeActionHandler(log, "handlers.CancelTradeHandler", "trade_cancel", tradeService.Cancel)
}

func tradeActionHandler(log *slog.Logger, op, workflow string, transition tradeTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", op))

		tradeID, ok := parseTradeID(logger, w, r)
		if !ok {
			return
		}

		accountID, ok := callerID(logger, w, r)
		if !ok {
			return
		}

		trade, err := transition(r.Context(), tradeID, accountID)
		observe(workflow, err)
		if err != nil {
			respondError(logger, w, err)
			return
		}

		writeJSON(logger, w, http.StatusOK, trade)
	}
}

// GetTradeHandler обрабатывает GET /trades/{id}
func GetTradeHandler(log *slog.Logger, tradeService service.TradeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetTradeHandler"
		logger := log.With(slog.String("op", op))

		tradeID, ok := parseTradeID(logger, w, r)
		if !ok {
			return
		}

		accountID, ok := callerID(logger, w, r)
		if !ok {
			return
		}

		trade, err := tradeService.Get(r.Context(), tradeID, accountID)
		if err != nil {
			respondError(logger, w, err)
			return
		}

		writeJSON(logger, w, http.StatusOK, trade)
	}
}

type tradeLister func(ctx context.Context, req service.TradeListRequest) ([]*models.TradeOffer, error)

// IncomingTradesHandler обрабатывает GET /trades/incoming?status=&limit=&offset=
func IncomingTradesHandler(log *slog.Logger, tradeService service.TradeService) http.HandlerFunc {
	return tradeListHandler(log, "handlers.IncomingTradesHandler", tradeService.Incoming)
}

// OutgoingTradesHandler обрабатывает GET /trades/outgoing?status=&limit=&offset=
func OutgoingTradesHandler(log *slog.Logger, tradeService service.TradeService) http.HandlerFunc {
	return tradeListHandler(log, "handlers.OutgoingTradesHandler", tradeService.Outgoing)
}

func tradeListHandler(log *slog.Logger, op string, list tradeLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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

		var status *models.TradeStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, err := models.ParseTradeStatus(raw)
			if err != nil {
				logger.Warn("invalid status filter", slog.String("status", raw))
				writeError(logger, w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
				return
			}
			status = &parsed
		}

		trades, err := list(r.Context(), service.TradeListRequest{
			AccountID: accountID,
			Status:    status,
			Limit:     page.Limit,
			Offset:    page.Offset,
		})
		if err != nil {
			respondError(logger, w, err)
			return
		}
		if trades == nil {
			trades = []*models.TradeOffer{}
		}

		writeJSON(logger, w, http.StatusOK, TradesResponse{
			Trades: trades,
			Limit:  page.Limit,
			Offset: page.Offset,
		})
	}
}

func parseTradeID(logger *slog.Logger, w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("invalid trade id", slog.String("id", raw))
		writeError(logger, w, http.StatusBadRequest, CodeInvalidRequest, "trade id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
