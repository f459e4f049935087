package bot

import "time"

// Snapshot is a consistent point-in-time view of a bot's state, safe to
// serialize for the control-plane API and the snapshot store.
type Snapshot struct {
	ID                string    `json:"id"`
	Symbol            string    `json:"symbol"`
	ProductID         int       `json:"product_id"`
	Timeframe         string    `json:"timeframe"`
	Phase             Phase     `json:"phase"`
	PrevHigh          float64   `json:"prev_high"`
	PrevLow           float64   `json:"prev_low"`
	BuyOrderID        int64     `json:"buy_order_id,omitempty"`
	SellOrderID       int64     `json:"sell_order_id,omitempty"`
	HasPosition       bool      `json:"has_position"`
	EntryPrice        float64   `json:"entry_price,omitempty"`
	PositionSide      Side      `json:"position_side,omitempty"`
	BreakevenApplied  bool      `json:"breakeven_applied"`
	StopLossOrderID   int64     `json:"stop_loss_order_id,omitempty"`
	TakeProfitOrderID int64     `json:"take_profit_order_id,omitempty"`
	LastResetTime     time.Time `json:"last_reset_time"`
	LastError         string    `json:"last_error,omitempty"`
	StartedAt         time.Time `json:"started_at"`
}

// Snapshot returns a copy of the bot's current state under the read lock.
func (b *Bot) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		ID:                b.cfg.ID,
		Symbol:            b.cfg.Symbol,
		ProductID:         b.cfg.ProductID,
		Timeframe:         b.cfg.Timeframe,
		Phase:             b.phase,
		PrevHigh:          b.prevHigh,
		PrevLow:           b.prevLow,
		BuyOrderID:        b.buyOrderID,
		SellOrderID:       b.sellOrderID,
		HasPosition:       b.hasPosition,
		EntryPrice:        b.entryPrice,
		PositionSide:      b.positionSide,
		BreakevenApplied:  b.breakevenApplied,
		StopLossOrderID:   b.stopLossOrderID,
		TakeProfitOrderID: b.takeProfitOrderID,
		LastResetTime:     b.lastResetTime,
		LastError:         b.lastError,
		StartedAt:         b.startedAt,
	}
}
