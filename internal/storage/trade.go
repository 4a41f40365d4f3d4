package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/recipe-exchange/internal/domain/models"
)

// TradeDirection выбирает входящие или исходящие предложения.
type TradeDirection int

const (
	TradesIncoming TradeDirection = iota
	TradesOutgoing
)

// TradeFilter - параметры выборки предложений обмена для аккаунта.
type TradeFilter struct {
	AccountID int64
	Direction TradeDirection
	Status    *models.TradeStatus // nil - любой статус
	Limit     int
	Offset    int
}

// TradeStorage описывает методы для работы с предложениями обмена.
type TradeStorage interface {
	CreateTrade(ctx context.Context, tx *sql.Tx, trade *models.TradeOffer) (*models.TradeOffer, error)
	GetTradeByID(ctx context.Context, id uuid.UUID) (*models.TradeOffer, error)
	// LockTradeByIDTx блокирует предложение, чтобы два accept не прошли одновременно.
	LockTradeByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.TradeOffer, error)
	// UpdateTradeStatus меняет статус и возвращает новое значение updated_at.
	UpdateTradeStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status models.TradeStatus) (time.Time, error)
	ListTrades(ctx context.Context, filter TradeFilter) ([]*models.TradeOffer, error)
}

type tradeRepository struct {
	db *sql.DB
}

func NewTradeRepository(db *sql.DB) TradeStorage {
	return &tradeRepository{db: db}
}

const tradeColumns = "id, offering_account_id, offered_recipe_id, requested_account_id, requested_recipe_id, status, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (*models.TradeOffer, error) {
	t := &models.TradeOffer{}
	err := row.Scan(&t.ID, &t.OfferingAccountID, &t.OfferedRecipeID, &t.RequestedAccountID, &t.RequestedRecipeID,
		&t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *tradeRepository) CreateTrade(ctx context.Context, tx *sql.Tx, trade *models.TradeOffer) (*models.TradeOffer, error) {
	if trade.ID == uuid.Nil {
		trade.ID = uuid.New()
	}
	query := `INSERT INTO trade_offers (id, offering_account_id, offered_recipe_id, requested_account_id, requested_recipe_id, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	          RETURNING created_at, updated_at`
	err := tx.QueryRowContext(ctx, query, trade.ID, trade.OfferingAccountID, trade.OfferedRecipeID,
		trade.RequestedAccountID, trade.RequestedRecipeID, trade.Status.String()).Scan(&trade.CreatedAt, &trade.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create trade offer: %w", Classify(err))
	}
	return trade, nil
}

func (r *tradeRepository) GetTradeByID(ctx context.Context, id uuid.UUID) (*models.TradeOffer, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+tradeColumns+" FROM trade_offers WHERE id = $1", id)
	trade, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return trade, nil
}

func (r *tradeRepository) LockTradeByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.TradeOffer, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+tradeColumns+" FROM trade_offers WHERE id = $1 FOR UPDATE NOWAIT", id)
	trade, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, Classify(err)
	}
	return trade, nil
}

func (r *tradeRepository) UpdateTradeStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status models.TradeStatus) (time.Time, error) {
	var updatedAt time.Time
	row := tx.QueryRowContext(ctx, "UPDATE trade_offers SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at", status.String(), id)
	if err := row.Scan(&updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrTradeNotFound
		}
		return time.Time{}, fmt.Errorf("failed to update trade status: %w", Classify(err))
	}
	return updatedAt, nil
}

func (r *tradeRepository) ListTrades(ctx context.Context, filter TradeFilter) ([]*models.TradeOffer, error) {
	column := "requested_account_id"
	if filter.Direction == TradesOutgoing {
		column = "offering_account_id"
	}

	// статус передаём строкой или NULL, фильтр в одном запросе
	var status sql.NullString
	if filter.Status != nil {
		status = sql.NullString{String: filter.Status.String(), Valid: true}
	}

	query := "SELECT " + tradeColumns + " FROM trade_offers WHERE " + column + " = $1 AND ($2::text IS NULL OR status = $2) " +
		"ORDER BY created_at DESC LIMIT $3 OFFSET $4"
	rows, err := r.db.QueryContext(ctx, query, filter.AccountID, status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade offers: %w", err)
	}
	defer rows.Close()

	var trades []*models.TradeOffer
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade offer: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return trades, nil
}
