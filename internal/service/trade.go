package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/recipe-exchange/internal/domain/models"
	"github.com/linemk/recipe-exchange/internal/events"
	"github.com/linemk/recipe-exchange/internal/storage"
)

// OfferRequest - предложение обменять offeredRecipeID на requestedRecipeID аккаунта requestedAccountID.
type OfferRequest struct {
	OfferingAccountID  int64
	OfferedRecipeID    int64
	RequestedAccountID int64
	RequestedRecipeID  int64
}

// TradeListRequest - выборка входящих или исходящих предложений аккаунта.
type TradeListRequest struct {
	AccountID int64
	Status    *models.TradeStatus
	Limit     int
	Offset    int
}

// TradeService ведёт предложения обмена по схеме Pending -> {Accepted, Declined, Cancelled}.
type TradeService interface {
	Offer(ctx context.Context, req OfferRequest) (*models.TradeOffer, error)
	Accept(ctx context.Context, tradeID uuid.UUID, actingAccountID int64) (*models.TradeOffer, error)
	Decline(ctx context.Context, tradeID uuid.UUID, actingAccountID int64) (*models.TradeOffer, error)
	Cancel(ctx context.Context, tradeID uuid.UUID, actingAccountID int64) (*models.TradeOffer, error)
	Get(ctx context.Context, tradeID uuid.UUID, actingAccountID int64) (*models.TradeOffer, error)
	Incoming(ctx context.Context, req TradeListRequest) ([]*models.TradeOffer, error)
	Outgoing(ctx context.Context, req TradeListRequest) ([]*models.TradeOffer, error)
}

type tradeService struct {
	log           *slog.Logger
	atomic        *Atomic
	accountRepo   storage.AccountReader
	catalog       RecipeCatalog
	ownershipRepo storage.OwnershipStorage
	tradeRepo     storage.TradeStorage
	publisher     events.Publisher
}

func NewTradeService(log *slog.Logger, atomic *Atomic, accountRepo storage.AccountReader, catalog RecipeCatalog, ownershipRepo storage.OwnershipStorage, tradeRepo storage.TradeStorage, publisher events.Publisher) TradeService {
	return &tradeService{
		log:           log,
		atomic:        atomic,
		accountRepo:   accountRepo,
		catalog:       catalog,
		ownershipRepo: ownershipRepo,
		tradeRepo:     tradeRepo,
		publisher:     publisher,
	}
}

// Offer создаёт предложение в статусе Pending. Владение запрошенным рецептом здесь
// не проверяется: до принятия оно может поменяться, поэтому проверка делается в Accept.
func (s *tradeService) Offer(ctx context.Context, req OfferRequest) (*models.TradeOffer, error) {
	const op = "service.TradeService.Offer"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("offeringAccountID", req.OfferingAccountID),
		slog.Int64("offeredRecipeID", req.OfferedRecipeID),
		slog.Int64("requestedAccountID", req.RequestedAccountID),
		slog.Int64("requestedRecipeID", req.RequestedRecipeID),
	)
	logger.Info("creating trade offer")

	if req.OfferingAccountID == req.RequestedAccountID {
		return nil, fmt.Errorf("%s: cannot trade with yourself: %w", op, ErrInvalidOffer)
	}
	if req.OfferedRecipeID == req.RequestedRecipeID {
		return nil, fmt.Errorf("%s: offered and requested recipe are the same: %w", op, ErrInvalidOffer)
	}

	// аккаунты и рецепты не удаляются, поэтому их существование проверяем до транзакции
	if _, err := s.accountRepo.GetAccountByID(ctx, req.RequestedAccountID); err != nil {
		logger.Warn("requested account not found", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get requested account: %w", op, translate(err))
	}
	if _, err := s.catalog.GetRecipeByID(ctx, req.OfferedRecipeID); err != nil {
		logger.Warn("offered recipe not found", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get offered recipe: %w", op, translate(err))
	}
	if _, err := s.catalog.GetRecipeByID(ctx, req.RequestedRecipeID); err != nil {
		logger.Warn("requested recipe not found", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get requested recipe: %w", op, translate(err))
	}

	var trade *models.TradeOffer
	err := s.atomic.Do(ctx, op, func(tx *sql.Tx) error {
		owner, err := s.ownershipRepo.LockOwnerOfTx(ctx, tx, req.OfferedRecipeID)
		if err != nil {
			return fmt.Errorf("%s: failed to get owner: %w", op, translate(err))
		}
		if owner == nil || owner.AccountID != req.OfferingAccountID {
			return fmt.Errorf("%s: %w", op, ErrNotOwner)
		}

		created, err := s.tradeRepo.CreateTrade(ctx, tx, &models.TradeOffer{
			OfferingAccountID:  req.OfferingAccountID,
			OfferedRecipeID:    req.OfferedRecipeID,
			RequestedAccountID: req.RequestedAccountID,
			RequestedRecipeID:  req.RequestedRecipeID,
			Status:             models.TradePending,
		})
		if err != nil {
			return fmt.Errorf("%s: failed to create trade: %w", op, translate(err))
		}
		trade = created
		return nil
	})
	if err != nil {
		logger.Error("failed to create trade offer", slog.Any("error", err))
		return nil, err
	}

	s.notifyTrade(ctx, logger, events.SubjectTradeOffered, trade)
	logger.Info("trade offer created", slog.String("tradeID", trade.ID.String()))
	return trade, nil
}

// Accept меняет владельцев обоих рецептов и переводит предложение в Accepted.
// Обе проверки владения и оба переназначения выполняются в одной транзакции.
// Если кто-то из участников уже не владеет своим рецептом, предложение отменяется
// (Cancelled) и возвращается ErrOwnershipChanged; владение при этом не меняется.
func (s *tradeService) Accept(ctx context.Context, tradeID uuid.UUID, actingAccountID int64) (*models.TradeOffer, error) {
	const op = "service.TradeService.Accept"
	logger := s.log.With(slog.String("op", op), slog.String("tradeID", tradeID.String()), slog.Int64("actingAccountID", actingAccountID))
	logger.Info("accepting trade offer")

	var (
		trade *models.TradeOffer
		stale error
	)
	err := s.atomic.Do(ctx, op, func(tx *sql.Tx) error {
		stale = nil

		locked, err := s.lockForTransition(ctx, tx, op, tradeID, actingAccountID, models.TradeAccepted)
		if err != nil {
			return err
		}

		// блокируем записи владения в порядке возрастания id рецепта
		first, second := locked.OfferedRecipeID, locked.RequestedRecipeID
		if first > second {
			first, second = second, first
		}
		owners := make(map[int64]*models.OwnershipRecord, 2)
		for _, recipeID := range []int64{first, second} {
			owner, err := s.ownershipRepo.LockOwnerOfTx(ctx, tx, recipeID)
			if err != nil {
				return fmt.Errorf("%s: failed to get owner of recipe %d: %w", op, recipeID, translate(err))
			}
			owners[recipeID] = owner
		}

		if !ownedBy(owners[locked.OfferedRecipeID], locked.OfferingAccountID) ||
			!ownedBy(owners[locked.RequestedRecipeID], locked.RequestedAccountID) {
			// предложение устарело: закрываем его, коммитим только смену статуса
			updatedAt, err := s.tradeRepo.UpdateTradeStatus(ctx, tx, tradeID, models.TradeCancelled)
			if err != nil {
				return fmt.Errorf("%s: failed to cancel stale trade: %w", op, translate(err))
			}
			locked.Status = models.TradeCancelled
			locked.UpdatedAt = updatedAt
			trade = locked
			stale = fmt.Errorf("%s: %w", op, ErrOwnershipChanged)
			return nil
		}

		if _, err := s.ownershipRepo.Transfer(ctx, tx, locked.OfferedRecipeID, locked.OfferingAccountID, locked.RequestedAccountID, models.AcquiredByTrade); err != nil {
			return fmt.Errorf("%s: failed to transfer offered recipe: %w", op, translate(err))
		}
		if _, err := s.ownershipRepo.Transfer(ctx, tx, locked.RequestedRecipeID, locked.RequestedAccountID, locked.OfferingAccountID, models.AcquiredByTrade); err != nil {
			return fmt.Errorf("%s: failed to transfer requested recipe: %w", op, translate(err))
		}

		updatedAt, err := s.tradeRepo.UpdateTradeStatus(ctx, tx, tradeID, models.TradeAccepted)
		if err != nil {
			return fmt.Errorf("%s: failed to update trade status: %w", op, translate(err))
		}
		locked.Status = models.TradeAccepted
		locked.UpdatedAt = updatedAt
		trade = locked
		return nil
	})
	if err != nil {
		logger.Error("failed to accept trade offer", slog.Any("error", err))
		return nil, err
	}

	if stale != nil {
		logger.Warn("trade offer cancelled: ownership changed")
		s.notifyTrade(ctx, logger, events.SubjectTradeCancelled, trade)
		return nil, stale
	}

	s.notifyTrade(ctx, logger, events.SubjectTradeAccepted, trade)
	logger.Info("trade offer accepted")
	return trade, nil
}

func (s *tradeService) Decline(ctx context.Context, tradeID uuid.UUID, actingAccountID int64) (*models.TradeOffer, error) {
	const op = "service.TradeService.Decline"
	return s.close(ctx, op, tradeID, actingAccountID, models.TradeDeclined, events.SubjectTradeDeclined)
}

func (s *tradeService) Cancel(ctx context.Context, tradeID uuid.UUID, actingAccountID int64) (*models.TradeOffer, error) {
	const op = "service.TradeService.Cancel"
	return s.close(ctx, op, tradeID, actingAccountID, models.TradeCancelled, events.SubjectTradeCancelled)
}

// close переводит предложение в терминальный статус без изменения владения.
func (s *tradeService) close(ctx context.Context, op string, tradeID uuid.UUID, actingAccountID int64, target models.TradeStatus, subject string) (*models.TradeOffer, error) {
	logger := s.log.With(slog.String("op", op), slog.String("tradeID", tradeID.String()), slog.Int64("actingAccountID", actingAccountID))
	logger.Info("closing trade offer", slog.String("status", target.String()))

	var trade *models.TradeOffer
	err := s.atomic.Do(ctx, op, func(tx *sql.Tx) error {
		locked, err := s.lockForTransition(ctx, tx, op, tradeID, actingAccountID, target)
		if err != nil {
			return err
		}

		updatedAt, err := s.tradeRepo.UpdateTradeStatus(ctx, tx, tradeID, target)
		if err != nil {
			return fmt.Errorf("%s: failed to update trade status: %w", op, translate(err))
		}
		locked.Status = target
		locked.UpdatedAt = updatedAt
		trade = locked
		return nil
	})
	if err != nil {
		logger.Error("failed to close trade offer", slog.Any("error", err))
		return nil, err
	}

	s.notifyTrade(ctx, logger, subject, trade)
	logger.Info("trade offer closed", slog.String("status", target.String()))
	return trade, nil
}

// lockForTransition блокирует предложение и проверяет, что actingAccountID вправе
// перевести его в target и что переход допустим из текущего статуса.
func (s *tradeService) lockForTransition(ctx context.Context, tx *sql.Tx, op string, tradeID uuid.UUID, actingAccountID int64, target models.TradeStatus) (*models.TradeOffer, error) {
	trade, err := s.tradeRepo.LockTradeByIDTx(ctx, tx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get trade: %w", op, translate(err))
	}

	var actor int64
	switch target {
	case models.TradeAccepted, models.TradeDeclined:
		actor = trade.RequestedAccountID
	case models.TradeCancelled:
		actor = trade.OfferingAccountID
	case models.TradePending:
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidState)
	default:
		return nil, fmt.Errorf("%s: unknown target status %s: %w", op, target, ErrInvalidState)
	}
	if actingAccountID != actor {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if !trade.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%s: status is %s: %w", op, trade.Status, ErrInvalidState)
	}
	return trade, nil
}

// Get возвращает предложение только его участникам.
func (s *tradeService) Get(ctx context.Context, tradeID uuid.UUID, actingAccountID int64) (*models.TradeOffer, error) {
	const op = "service.TradeService.Get"

	trade, err := s.tradeRepo.GetTradeByID(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translate(err))
	}
	if actingAccountID != trade.OfferingAccountID && actingAccountID != trade.RequestedAccountID {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	return trade, nil
}

func (s *tradeService) Incoming(ctx context.Context, req TradeListRequest) ([]*models.TradeOffer, error) {
	const op = "service.TradeService.Incoming"
	return s.list(ctx, op, req, storage.TradesIncoming)
}

func (s *tradeService) Outgoing(ctx context.Context, req TradeListRequest) ([]*models.TradeOffer, error) {
	const op = "service.TradeService.Outgoing"
	return s.list(ctx, op, req, storage.TradesOutgoing)
}

func (s *tradeService) list(ctx context.Context, op string, req TradeListRequest, direction storage.TradeDirection) ([]*models.TradeOffer, error) {
	limit, offset := normalizePage(req.Limit, req.Offset)
	trades, err := s.tradeRepo.ListTrades(ctx, storage.TradeFilter{
		AccountID: req.AccountID,
		Direction: direction,
		Status:    req.Status,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		s.log.Error("failed to list trades", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, translate(err))
	}
	return trades, nil
}

func (s *tradeService) notifyTrade(ctx context.Context, logger *slog.Logger, subject string, trade *models.TradeOffer) {
	notify(ctx, logger, s.publisher, subject, events.TradeChanged{
		TradeID:            trade.ID,
		Status:             trade.Status.String(),
		OfferingAccountID:  trade.OfferingAccountID,
		OfferedRecipeID:    trade.OfferedRecipeID,
		RequestedAccountID: trade.RequestedAccountID,
		RequestedRecipeID:  trade.RequestedRecipeID,
		OccurredAt:         time.Now().UTC(),
	})
}

func ownedBy(owner *models.OwnershipRecord, accountID int64) bool {
	return owner != nil && owner.AccountID == accountID
}
