// Package events публикует доменные события после фиксации транзакции.
// Доставка не гарантируется: событие - уведомление, источник истины - БД.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	SubjectPointsToppedUp  = "points.topped_up"
	SubjectRecipePurchased = "recipe.purchased"
	SubjectTradeOffered    = "trade.offered"
	SubjectTradeAccepted   = "trade.accepted"
	SubjectTradeDeclined   = "trade.declined"
	SubjectTradeCancelled  = "trade.cancelled"
)

// Publisher отправляет событие в шину.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

type PointsToppedUp struct {
	AccountID     int64     `json:"accountId"`
	Amount        int64     `json:"amount"`
	Balance       int64     `json:"balance"`
	TransactionID int64     `json:"transactionId"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type RecipePurchased struct {
	RecipeID      int64     `json:"recipeId"`
	BuyerID       int64     `json:"buyerId"`
	AuthorID      int64     `json:"authorId"`
	Price         int64     `json:"price"`
	TransactionID int64     `json:"transactionId"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type TradeChanged struct {
	TradeID            uuid.UUID `json:"tradeId"`
	Status             string    `json:"status"`
	OfferingAccountID  int64     `json:"offeringAccountId"`
	OfferedRecipeID    int64     `json:"offeredRecipeId"`
	RequestedAccountID int64     `json:"requestedAccountId"`
	RequestedRecipeID  int64     `json:"requestedRecipeId"`
	OccurredAt         time.Time `json:"occurredAt"`
}

// Nop используется, когда шина не настроена.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// NATSPublisher публикует JSON в NATS под префиксом prefix.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: prefix}
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", subject, err)
	}
	if err := p.nc.Publish(Subject(p.prefix, subject), data); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", subject, err)
	}
	return nil
}

// Subject собирает полное имя темы NATS.
func Subject(prefix, subject string) string {
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}
