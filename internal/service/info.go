package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/recipe-exchange/internal/domain/models"
	"github.com/linemk/recipe-exchange/internal/storage"
)

// InfoService собирает сводку по аккаунту для GET /api/info.
type InfoService interface {
	GetInfo(ctx context.Context, accountID int64) (*InfoResponse, error)
}

type infoService struct {
	log           *slog.Logger
	accountRepo   storage.AccountReader
	ownershipRepo storage.OwnershipStorage
	txRepo        storage.TransactionReader
}

func NewInfoService(log *slog.Logger, accountRepo storage.AccountReader, ownershipRepo storage.OwnershipStorage, txRepo storage.TransactionReader) InfoService {
	return &infoService{
		log:           log,
		accountRepo:   accountRepo,
		ownershipRepo: ownershipRepo,
		txRepo:        txRepo,
	}
}

// InfoResponse - баланс, рецепты и последние операции.
type InfoResponse struct {
	Balance      int64                     `json:"balance"`
	Recipes      []*models.OwnershipRecord `json:"recipes"`
	Transactions []*models.Transaction     `json:"transactions"`
}

func (s *infoService) GetInfo(ctx context.Context, accountID int64) (*InfoResponse, error) {
	const op = "service.InfoService.GetInfo"
	s.log.Info("getting info", slog.String("op", op), slog.Int64("accountID", accountID))

	account, err := s.accountRepo.GetAccountByID(ctx, accountID)
	if err != nil {
		s.log.Error("failed to get account by id", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, translate(err))
	}

	recipes, err := s.ownershipRepo.GetOwnershipsByAccountID(ctx, accountID)
	if err != nil {
		s.log.Error("failed to get ownerships", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, translate(err))
	}

	// история не критична для сводки: при ошибке отдаём пустую
	txs, err := s.txRepo.GetTransactionsByAccountID(ctx, accountID, DefaultPageLimit, 0)
	if err != nil {
		s.log.Error("failed to get transactions", slog.Any("error", err))
		txs = nil
	}

	if recipes == nil {
		recipes = []*models.OwnershipRecord{}
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}

	return &InfoResponse{
		Balance:      account.Balance,
		Recipes:      recipes,
		Transactions: txs,
	}, nil
}
