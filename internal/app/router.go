package app

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/recipe-exchange/internal/app/handlers"
	"github.com/linemk/recipe-exchange/internal/config"
	"github.com/linemk/recipe-exchange/internal/events"
	"github.com/linemk/recipe-exchange/internal/idempotency"
	"github.com/linemk/recipe-exchange/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/recipe-exchange/internal/lib/logger/handlers/urllog"
	"github.com/linemk/recipe-exchange/internal/lib/metrics"
	"github.com/linemk/recipe-exchange/internal/service"
	"github.com/linemk/recipe-exchange/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services - все сервисы, которыми пользуются обработчики.
type Services struct {
	Points   service.PointsService
	Purchase service.PurchaseService
	Trade    service.TradeService
	Catalog  service.CatalogService
	Info     service.InfoService
}

// NewServices собирает репозитории и сервисы поверх одного *sql.DB.
// Все изменения баланса идут через один BalanceService.
func NewServices(log *slog.Logger, db *sql.DB, ledger config.LedgerConfig, publisher events.Publisher) *Services {
	accountRepo := storage.NewAccountRepository(db)
	txRepo := storage.NewTransactionRepository(db)
	recipeRepo := storage.NewRecipeRepository(db)
	ownershipRepo := storage.NewOwnershipRepository(db)
	tradeRepo := storage.NewTradeRepository(db)

	atomic := service.NewAtomic(log, db, ledger.MaxRetries, ledger.RetryBase)
	balance := service.NewBalanceService(log, accountRepo, txRepo)

	return &Services{
		Points:   service.NewPointsService(log, atomic, balance, accountRepo, txRepo, publisher),
		Purchase: service.NewPurchaseService(log, atomic, balance, ownershipRepo, recipeRepo, publisher),
		Trade:    service.NewTradeService(log, atomic, accountRepo, recipeRepo, ownershipRepo, tradeRepo, publisher),
		Catalog:  service.NewCatalogService(log, atomic, accountRepo, recipeRepo, ownershipRepo),
		Info:     service.NewInfoService(log, accountRepo, ownershipRepo, txRepo),
	}
}

// NewRouter описывает HTTP API. Все бизнес-маршруты требуют JWT.
func NewRouter(log *slog.Logger, jwtSecret string, svc *Services, guard *idempotency.Guard) http.Handler {
	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(metrics.New())
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","time":"` + time.Now().UTC().Format(time.RFC3339) + `"}`))
	})

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware(jwtSecret))

		r.Get("/api/info", handlers.InfoHandler(log, svc.Info))

		r.Route("/points", func(r chi.Router) {
			r.Post("/topup", handlers.TopUpHandler(log, svc.Points, guard))
			r.Get("/balance", handlers.BalanceHandler(log, svc.Points))
			r.Get("/transactions", handlers.TransactionsHandler(log, svc.Points))
			r.Get("/reconcile", handlers.ReconcileHandler(log, svc.Points))
		})

		r.Route("/recipes", func(r chi.Router) {
			r.Post("/", handlers.PublishRecipeHandler(log, svc.Catalog))
			r.Get("/owned", handlers.OwnedRecipesHandler(log, svc.Catalog))
			r.Post("/{id}/buy", handlers.BuyHandler(log, svc.Purchase))
		})

		r.Route("/trades", func(r chi.Router) {
			r.Post("/offer", handlers.OfferHandler(log, svc.Trade))
			r.Get("/incoming", handlers.IncomingTradesHandler(log, svc.Trade))
			r.Get("/outgoing", handlers.OutgoingTradesHandler(log, svc.Trade))
			r.Get("/{id}", handlers.GetTradeHandler(log, svc.Trade))
			r.Post("/{id}/accept", handlers.AcceptTradeHandler(log, svc.Trade))
			r.Post("/{id}/decline", handlers.DeclineTradeHandler(log, svc.Trade))
			r.Post("/{id}/cancel", handlers.CancelTradeHandler(log, svc.Trade))
		})
	})

	return router
}
