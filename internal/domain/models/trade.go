package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TradeStatus - состояние предложения обмена. Допустимы ровно четыре значения,
// нулевое значение невалидно.
type TradeStatus uint8

const (
	TradePending TradeStatus = iota + 1
	TradeAccepted
	TradeDeclined
	TradeCancelled
)

func (s TradeStatus) String() string {
	switch s {
	case TradePending:
		return "pending"
	case TradeAccepted:
		return "accepted"
	case TradeDeclined:
		return "declined"
	case TradeCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("TradeStatus(%d)", uint8(s))
}

// ParseTradeStatus разбирает строковое представление статуса.
func ParseTradeStatus(v string) (TradeStatus, error) {
	switch v {
	case "pending":
		return TradePending, nil
	case "accepted":
		return TradeAccepted, nil
	case "declined":
		return TradeDeclined, nil
	case "cancelled":
		return TradeCancelled, nil
	}
	return 0, fmt.Errorf("unknown trade status %q", v)
}

// Valid сообщает, является ли значение одним из четырёх статусов.
func (s TradeStatus) Valid() bool {
	switch s {
	case TradePending, TradeAccepted, TradeDeclined, TradeCancelled:
		return true
	}
	return false
}

// Terminal - из терминального статуса переходов нет.
func (s TradeStatus) Terminal() bool {
	switch s {
	case TradeAccepted, TradeDeclined, TradeCancelled:
		return true
	case TradePending:
		return false
	}
	return false
}

// CanTransitionTo разрешает только Pending -> {Accepted, Declined, Cancelled}.
func (s TradeStatus) CanTransitionTo(next TradeStatus) bool {
	switch s {
	case TradePending:
		return next.Terminal()
	case TradeAccepted, TradeDeclined, TradeCancelled:
		return false
	}
	return false
}

// Value хранит статус в БД строкой.
func (s TradeStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid trade status %d", uint8(s))
	}
	return s.String(), nil
}

func (s *TradeStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into TradeStatus", src)
	}
	parsed, err := ParseTradeStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s TradeStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid trade status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *TradeStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseTradeStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// TradeOffer - предложение обменять свой рецепт на рецепт другого аккаунта.
// Записи не удаляются, терминальные остаются для аудита.
type TradeOffer struct {
	ID                 uuid.UUID   `json:"id"`
	OfferingAccountID  int64       `json:"offeringAccountId"`
	OfferedRecipeID    int64       `json:"offeredRecipeId"`
	RequestedAccountID int64       `json:"requestedAccountId"`
	RequestedRecipeID  int64       `json:"requestedRecipeId"`
	Status             TradeStatus `json:"status"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}
