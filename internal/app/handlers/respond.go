package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/recipe-exchange/internal/idempotency"
	"github.com/linemk/recipe-exchange/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/recipe-exchange/internal/lib/metrics"
	"github.com/linemk/recipe-exchange/internal/service"
)

var validate = validator.New()

// ErrorResponse - тело любого ответа с ошибкой: стабильный код и текст для человека.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeInvalidRequest = "invalid_request"
	CodeUnauthorized   = "unauthorized"
	CodeInternal       = "internal"
	CodeUnavailable    = "unavailable"
)

type errorKind struct {
	err    error
	status int
	code   string
}

// порядок важен: ошибка может оборачивать несколько сентинелов
var errorKinds = []errorKind{
	{service.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
	{service.ErrOwnershipChanged, http.StatusConflict, "ownership_changed"},
	{service.ErrAlreadyOwned, http.StatusConflict, "already_owned"},
	{service.ErrNotOwner, http.StatusForbidden, "not_owner"},
	{service.ErrInvalidOffer, http.StatusBadRequest, "invalid_offer"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrStorageConflict, http.StatusServiceUnavailable, "storage_conflict"},
	{service.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{idempotency.ErrDuplicate, http.StatusConflict, "duplicate_request"},
	{idempotency.ErrInvalidKey, http.StatusBadRequest, CodeInvalidRequest},
}

// classify возвращает HTTP-статус, код и безопасный текст для ошибки сервиса.
// Неизвестные ошибки наружу не раскрываются.
func classify(err error) (int, string, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.code, k.err.Error()
		}
	}
	return http.StatusInternalServerError, CodeInternal, "internal server error"
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func writeError(logger *slog.Logger, w http.ResponseWriter, status int, code, message string) {
	writeJSON(logger, w, status, ErrorResponse{Code: code, Message: message})
}

// respondError пишет ответ по ошибке сервиса. 5xx логируются как ошибки, остальное - как отказ.
func respondError(logger *slog.Logger, w http.ResponseWriter, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("code", code), slog.Any("error", err))
	} else {
		logger.Warn("request rejected", slog.String("code", code), slog.Any("error", err))
	}
	writeError(logger, w, status, code, message)
}

// observe учитывает исход бизнес-операции в метриках.
func observe(workflow string, err error) {
	if err == nil {
		metrics.ObserveWorkflow(workflow, metrics.ResultOK)
		return
	}
	_, code, _ := classify(err)
	metrics.ObserveWorkflow(workflow, code)
}

// callerID достаёт id аккаунта, который положил JWT-middleware.
func callerID(logger *slog.Logger, w http.ResponseWriter, r *http.Request) (int64, bool) {
	accountID, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		logger.Error("userID not found in context")
		writeError(logger, w, http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
		return 0, false
	}
	return accountID, true
}

func decodeAndValidate(logger *slog.Logger, w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Warn("invalid request: decoding error", slog.Any("error", err))
		writeError(logger, w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		logger.Warn("invalid request: validation error", slog.Any("error", err))
		writeError(logger, w, http.StatusBadRequest, CodeInvalidRequest, "validation error: "+err.Error())
		return false
	}
	return true
}

// PageQuery - параметры пагинации из query string.
type PageQuery struct {
	Limit  int `validate:"omitempty,min=1,max=100"`
	Offset int `validate:"min=0"`
}

func parsePage(logger *slog.Logger, w http.ResponseWriter, r *http.Request) (PageQuery, bool) {
	var page PageQuery
	q := r.URL.Query()

	for name, dst := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(logger, w, http.StatusBadRequest, CodeInvalidRequest, name+" must be an integer")
			return page, false
		}
		*dst = v
	}

	if err := validate.Struct(page); err != nil {
		writeError(logger, w, http.StatusBadRequest, CodeInvalidRequest, "validation error: "+err.Error())
		return page, false
	}
	return page, true
}

func parseID(logger *slog.Logger, w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		logger.Warn("invalid id parameter", slog.String("id", raw))
		writeError(logger, w, http.StatusBadRequest, CodeInvalidRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
