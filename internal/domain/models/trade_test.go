package models_test

import (
	"encoding/json"
	"testing"

	"github.com/linemk/recipe-exchange/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func TestTradeStatus_Transitions(t *testing.T) {
	all := []models.TradeStatus{models.TradePending, models.TradeAccepted, models.TradeDeclined, models.TradeCancelled}

	for _, from := range all {
		for _, to := range all {
			want := from == models.TradePending && to != models.TradePending
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	// нулевое значение никуда не переходит
	var zero models.TradeStatus
	assert.False(t, zero.Valid())
	assert.False(t, zero.CanTransitionTo(models.TradeAccepted))
}

func TestTradeStatus_ParseRoundTrip(t *testing.T) {
	for _, s := range []string{"pending", "accepted", "declined", "cancelled"} {
		status, err := models.ParseTradeStatus(s)
		assert.NoError(t, err)
		assert.Equal(t, s, status.String())
	}

	_, err := models.ParseTradeStatus("expired")
	assert.Error(t, err)
}

func TestTradeStatus_Scan(t *testing.T) {
	var s models.TradeStatus
	assert.NoError(t, s.Scan([]byte("declined")))
	assert.Equal(t, models.TradeDeclined, s)

	assert.Error(t, s.Scan(42))
	assert.Error(t, s.Scan("unknown"))
}

func TestTradeStatus_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Status models.TradeStatus `json:"status"`
	}{Status: models.TradeCancelled})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"status":"cancelled"}`, string(b))

	_, err = json.Marshal(models.TradeStatus(0))
	assert.Error(t, err)
}
