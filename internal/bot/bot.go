package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/config"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/delta"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/events"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/logging"
)

// Phase is the observable lifecycle state of a bot instance.
type Phase string

const (
	PhaseStarting           Phase = "starting"
	PhaseRecovering         Phase = "recovering"
	PhaseAwaitingBreakout   Phase = "awaiting_breakout"
	PhaseMonitoringPosition Phase = "monitoring_position"
	PhaseStopped            Phase = "stopped"
)

// Side of an open position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// interLegDelay paces consecutive order placements so the exchange never sees
// the two legs of a pair in the same instant.
const interLegDelay = time.Second

// pause sleeps for d or until the context is cancelled, whichever comes first.
func pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Config is the immutable per-instance configuration, validated before the
// state machine ever sees it.
type Config struct {
	ID                     string
	Symbol                 string
	ProductID              int
	OrderSize              int
	StopLossPoints         float64
	TakeProfitPoints       float64
	BreakevenTriggerPoints float64
	Timeframe              string
	ResetIntervalMinutes   int
	Timezone               string
	OrderCheckInterval     time.Duration
	PositionCheckInterval  time.Duration
	WaitForNextCandle      bool
	StartupDelayMinutes    int
	MaxPositionSize        float64
	CheckExistingOrders    bool
}

// Validate rejects configurations the state machine cannot run with and fills
// derivable defaults (reset interval from the timeframe, max position size
// from the order size).
func (c *Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("bot id is required")
	}
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.ProductID <= 0 {
		return fmt.Errorf("product_id must be positive, got %d", c.ProductID)
	}
	if c.OrderSize <= 0 {
		return fmt.Errorf("order_size must be positive, got %d", c.OrderSize)
	}
	if c.StopLossPoints <= 0 {
		return fmt.Errorf("stop_loss_points must be positive, got %v", c.StopLossPoints)
	}
	if c.TakeProfitPoints <= 0 {
		return fmt.Errorf("take_profit_points must be positive, got %v", c.TakeProfitPoints)
	}
	if c.BreakevenTriggerPoints <= 0 {
		return fmt.Errorf("breakeven_trigger_points must be positive, got %v", c.BreakevenTriggerPoints)
	}
	minutes, ok := config.TimeframeMinutes(c.Timeframe)
	if !ok {
		return fmt.Errorf("invalid timeframe %q", c.Timeframe)
	}
	if c.ResetIntervalMinutes <= 0 {
		c.ResetIntervalMinutes = minutes
	}
	if c.MaxPositionSize <= 0 {
		c.MaxPositionSize = float64(c.OrderSize) * 3
	}
	if c.OrderCheckInterval <= 0 {
		c.OrderCheckInterval = 10 * time.Second
	}
	if c.PositionCheckInterval <= 0 {
		c.PositionCheckInterval = 5 * time.Second
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// timeframeMinutes returns the configured timeframe's minute count, falling
// back to 60 for tokens that slipped past validation. Never returns zero.
func (c *Config) timeframeMinutes() int {
	if m, ok := config.TimeframeMinutes(c.Timeframe); ok {
		return m
	}
	return 60
}

// Bot is one breakout trading instance. All mutable state is owned by the
// Run loop; the mutex exists only so the control plane can take consistent
// snapshots without pausing the loop.
type Bot struct {
	cfg    Config
	client delta.Exchange
	bus    *events.Bus
	log    *logging.Logger
	loc    *time.Location

	mu                sync.RWMutex
	phase             Phase
	prevHigh          float64
	prevLow           float64
	buyOrderID        int64
	sellOrderID       int64
	hasPosition       bool
	entryPrice        float64
	positionSide      Side
	breakevenApplied  bool
	stopLossOrderID   int64
	takeProfitOrderID int64
	lastResetTime     time.Time
	lastError         string
	startedAt         time.Time
}

// New creates a bot instance. The config is validated and defaults are
// filled; the exchange client is consumed as-is.
func New(cfg Config, client delta.Exchange, bus *events.Bus) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	return &Bot{
		cfg:    cfg,
		client: client,
		bus:    bus,
		log:    logging.WithComponent("bot").WithBot(cfg.ID),
		loc:    loc,
		phase:  PhaseStarting,
	}, nil
}

// ID returns the bot identifier.
func (b *Bot) ID() string { return b.cfg.ID }

// ProductID returns the traded product id.
func (b *Bot) ProductID() int { return b.cfg.ProductID }

// Client exposes the exchange client for administrative control-plane calls
// (live order/position lookups, cancel-all on stop).
func (b *Bot) Client() delta.Exchange { return b.client }

// Run executes the bot until the context is cancelled. One goroutine per
// instance; no exchange calls for the same instance are ever concurrent.
func (b *Bot) Run(ctx context.Context) {
	b.log.Info("starting breakout bot",
		"symbol", b.cfg.Symbol, "timeframe", b.cfg.Timeframe,
		"order_size", b.cfg.OrderSize, "max_position_size", b.cfg.MaxPositionSize)

	b.mu.Lock()
	b.phase = PhaseRecovering
	b.startedAt = time.Now()
	b.mu.Unlock()

	if b.bus != nil {
		b.bus.PublishBotStarted(b.cfg.ID, b.cfg.Symbol, b.cfg.Timeframe)
	}

	if b.recoverExistingPosition() {
		b.log.Info("recovered existing position, skipping order placement")
	} else {
		high, low, ok := b.resolveLevels()
		if ok {
			b.mu.Lock()
			b.prevHigh, b.prevLow = high, low
			b.mu.Unlock()

			b.waitForNextCandle(ctx)
			if ctx.Err() == nil && !b.placeBreakoutOrders(ctx) {
				b.log.Warn("could not place initial orders, will retry at next reset",
					"reset_interval_minutes", b.cfg.ResetIntervalMinutes)
			}
		} else {
			b.log.Error("failed to calculate initial levels, will retry at next reset")
		}
	}

	b.mu.Lock()
	b.lastResetTime = time.Now()
	b.mu.Unlock()
	b.updatePhase()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastOrderCheck, lastPositionCheck, lastResetCheck time.Time

	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.phase = PhaseStopped
			b.mu.Unlock()
			if b.bus != nil {
				b.bus.PublishBotStopped(b.cfg.ID)
			}
			b.log.Info("bot stopped")
			return

		case now := <-ticker.C:
			if now.Sub(lastResetCheck) >= time.Minute {
				lastResetCheck = now
				if b.shouldReset(now) {
					b.performReset(ctx)
				}
			}

			if !b.HasPosition() {
				if now.Sub(lastOrderCheck) >= b.cfg.OrderCheckInterval {
					lastOrderCheck = now
					b.checkOrderStatus(ctx)
				}
			} else {
				if now.Sub(lastPositionCheck) >= b.cfg.PositionCheckInterval {
					lastPositionCheck = now
					b.monitorBreakeven()
					b.checkPositionClosed()
				}
			}
		}
	}
}

// HasPosition reports whether the bot currently tracks an open position.
func (b *Bot) HasPosition() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hasPosition
}

// updatePhase derives the loop phase from position presence.
func (b *Bot) updatePhase() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.phase == PhaseStopped {
		return
	}
	if b.hasPosition {
		b.phase = PhaseMonitoringPosition
	} else {
		b.phase = PhaseAwaitingBreakout
	}
}

func (b *Bot) setError(source string, err error) {
	b.mu.Lock()
	b.lastError = fmt.Sprintf("%s: %v", source, err)
	b.mu.Unlock()
	if b.bus != nil {
		b.bus.PublishError(b.cfg.ID, source, err)
	}
}

// resolveLevels fetches recent candles and returns the previous fully closed
// period's high/low. The last candle is assumed in-progress, so the
// second-to-last carries the levels.
func (b *Bot) resolveLevels() (high, low float64, ok bool) {
	end := time.Now().Unix()
	start := end - int64(3*b.cfg.timeframeMinutes()*60)

	candles, err := b.client.GetHistoricalCandles(b.cfg.Symbol, b.cfg.Timeframe, start, end)
	if err != nil {
		b.setError("level_resolver", err)
		b.log.Error("failed to fetch candles", "error", err)
		return 0, 0, false
	}
	if len(candles) < 2 {
		b.log.Error("insufficient candle data for previous period levels", "candles", len(candles))
		return 0, 0, false
	}

	prev := candles[len(candles)-2]
	high = prev.High.Float64()
	low = prev.Low.Float64()
	if high <= low {
		b.log.Error("resolver returned invalid level pair", "high", high, "low", low)
		return 0, 0, false
	}

	b.log.Info("previous period levels resolved",
		"timeframe", b.cfg.Timeframe, "high", high, "low", low)
	return high, low, true
}

// existingOrdersBlock reports whether open orders for the product should
// block placement. Any open limit or stop order counts as a pending breakout
// pair, including manually placed ones: the order records carry no origin
// field to tell them apart. A failed query permits trading.
func (b *Bot) existingOrdersBlock() bool {
	if !b.cfg.CheckExistingOrders {
		return false
	}

	orders, err := b.client.GetOpenOrders(b.cfg.ProductID)
	if err != nil {
		b.log.Error("failed to check existing orders, allowing placement", "error", err)
		return false
	}

	count := 0
	for _, order := range orders {
		if order.OrderType == delta.OrderTypeLimit || order.OrderType == delta.StopTypeLoss {
			count++
		}
	}
	if count > 0 {
		b.log.Warn("existing orders detected, skipping placement", "open_orders", count)
		return true
	}
	return false
}

// positionSizeAllows reports whether adding one more order would stay within
// the configured maximum position size. A failed query permits trading.
func (b *Bot) positionSizeAllows() bool {
	positions, err := b.client.GetPositions(b.cfg.ProductID)
	if err != nil {
		b.log.Error("failed to check position size, allowing placement", "error", err)
		return true
	}

	for _, p := range positions {
		if p.ProductID != b.cfg.ProductID {
			continue
		}
		current := p.Size.Float64()
		if current < 0 {
			current = -current
		}
		if current == 0 {
			continue
		}
		potential := current + float64(b.cfg.OrderSize)
		if potential > b.cfg.MaxPositionSize {
			b.log.Warn("position size limit exceeded, skipping placement",
				"current", current, "order_size", b.cfg.OrderSize,
				"potential", potential, "max", b.cfg.MaxPositionSize)
			return false
		}
		b.log.Info("existing position within size limit",
			"current", current, "potential", potential, "max", b.cfg.MaxPositionSize)
	}
	return true
}

// placeBreakoutOrders validates the placement gates in order and, when all
// pass, places the symmetric stop pair: buy stop at the previous high, sell
// stop at the previous low. Stop price equals limit price on both legs so the
// orders trigger only on a true breakout. If the sell leg fails after the buy
// leg landed, the buy is cancelled before returning.
func (b *Bot) placeBreakoutOrders(ctx context.Context) bool {
	b.mu.RLock()
	high, low := b.prevHigh, b.prevLow
	b.mu.RUnlock()

	if high == 0 || low == 0 {
		b.log.Error("previous period levels not set, cannot place orders")
		return false
	}

	if b.existingOrdersBlock() {
		return false
	}
	if !b.positionSizeAllows() {
		return false
	}

	ticker, err := b.client.GetTicker(b.cfg.Symbol)
	if err != nil {
		b.setError("order_placement", err)
		b.log.Error("failed to get current price", "error", err)
		return false
	}
	price := ticker.Close.Float64()
	if price == 0 {
		b.log.Error("ticker returned no price")
		return false
	}

	b.log.Info("checking breakout range", "price", price, "high", high, "low", low)
	if price >= high {
		b.log.Warn("price already above previous high, bullish breakout in progress, skipping",
			"price", price, "high", high)
		return false
	}
	if price <= low {
		b.log.Warn("price already below previous low, bearish breakout in progress, skipping",
			"price", price, "low", low)
		return false
	}

	buy, err := b.client.PlaceOrder(delta.OrderRequest{
		ProductID:     b.cfg.ProductID,
		ProductSymbol: b.cfg.Symbol,
		Side:          delta.SideBuy,
		Size:          b.cfg.OrderSize,
		LimitPrice:    delta.FormatPrice(high),
		StopPrice:     delta.FormatPrice(high),
		StopOrderType: delta.StopTypeLoss,
		ClientOrderID: fmt.Sprintf("breakout_buy_%d", time.Now().Unix()),
	})
	if err != nil || buy == nil || buy.ID == 0 {
		b.setError("order_placement", err)
		b.log.Error("failed to place buy stop order", "error", err)
		return false
	}

	b.mu.Lock()
	b.buyOrderID = buy.ID
	b.mu.Unlock()
	b.log.Info("buy stop order placed", "price", high, "order_id", buy.ID)

	pause(ctx, interLegDelay)

	sell, err := b.client.PlaceOrder(delta.OrderRequest{
		ProductID:     b.cfg.ProductID,
		ProductSymbol: b.cfg.Symbol,
		Side:          delta.SideSell,
		Size:          b.cfg.OrderSize,
		LimitPrice:    delta.FormatPrice(low),
		StopPrice:     delta.FormatPrice(low),
		StopOrderType: delta.StopTypeLoss,
		ClientOrderID: fmt.Sprintf("breakout_sell_%d", time.Now().Unix()),
	})
	if err != nil || sell == nil || sell.ID == 0 {
		b.setError("order_placement", err)
		b.log.Error("failed to place sell stop order, cancelling orphaned buy leg", "error", err)
		if cancelErr := b.client.CancelOrder(buy.ID, b.cfg.ProductID); cancelErr != nil {
			b.log.Error("failed to cancel orphaned buy order", "order_id", buy.ID, "error", cancelErr)
		}
		b.mu.Lock()
		b.buyOrderID = 0
		b.mu.Unlock()
		return false
	}

	b.mu.Lock()
	b.sellOrderID = sell.ID
	b.mu.Unlock()
	b.log.Info("sell stop order placed", "price", low, "order_id", sell.ID)

	if b.bus != nil {
		b.bus.PublishOrdersPlaced(b.cfg.ID, buy.ID, sell.ID, high, low)
	}
	b.log.Info("both breakout orders placed")
	return true
}

// checkOrderStatus is the fill detector: a nonzero position while none is
// tracked means a breakout order converted. On detection the untriggered
// opposite leg is cancelled and protection orders are placed.
func (b *Bot) checkOrderStatus(ctx context.Context) {
	positions, err := b.client.GetPositions(b.cfg.ProductID)
	if err != nil {
		b.log.Debug("position poll failed", "error", err)
		return
	}

	for _, p := range positions {
		if p.ProductID != b.cfg.ProductID {
			continue
		}
		size := p.Size.Float64()
		if size == 0 {
			continue
		}

		entry := p.EntryPrice.Float64()
		if entry == 0 {
			// Entry price unknown: adopting now would make SL/TP math
			// meaningless. Defer to the next poll.
			b.log.Warn("position reported without entry price, deferring fill detection")
			return
		}

		side := SideLong
		if size < 0 {
			side = SideShort
		}

		var cancelID int64
		b.mu.Lock()
		if b.hasPosition {
			b.mu.Unlock()
			return
		}
		b.hasPosition = true
		b.entryPrice = entry
		b.positionSide = side
		b.breakevenApplied = false
		if side == SideLong {
			cancelID = b.sellOrderID
			b.sellOrderID = 0
		} else {
			cancelID = b.buyOrderID
			b.buyOrderID = 0
		}
		b.mu.Unlock()

		abs := size
		if abs < 0 {
			abs = -abs
		}
		b.log.Info("position opened", "side", side, "size", abs, "entry_price", entry)
		if b.bus != nil {
			b.bus.PublishPositionOpened(b.cfg.ID, string(side), entry, abs)
		}

		if cancelID != 0 {
			if err := b.client.CancelOrder(cancelID, b.cfg.ProductID); err != nil {
				b.log.Error("failed to cancel opposite breakout order",
					"order_id", cancelID, "error", err)
			} else {
				b.log.Info("opposite breakout order cancelled", "order_id", cancelID)
				if b.bus != nil {
					b.bus.PublishOrderCancelled(b.cfg.ID, cancelID, "opposite leg after fill")
				}
			}
		}

		b.placeProtectiveOrders(ctx)
		b.updatePhase()
		return
	}
}

// placeProtectiveOrders places the stop-loss (stop order) and take-profit
// (plain limit) for the tracked position. Partial failure is logged, not
// rolled back: a position with only the stop-loss leg is still protected.
func (b *Bot) placeProtectiveOrders(ctx context.Context) {
	b.mu.RLock()
	entry, side := b.entryPrice, b.positionSide
	b.mu.RUnlock()

	if entry == 0 || side == "" {
		b.log.Error("cannot place protective orders without entry price and side")
		return
	}

	var slPrice, tpPrice float64
	var exitSide string
	if side == SideLong {
		slPrice = entry - b.cfg.StopLossPoints
		tpPrice = entry + b.cfg.TakeProfitPoints
		exitSide = delta.SideSell
	} else {
		slPrice = entry + b.cfg.StopLossPoints
		tpPrice = entry - b.cfg.TakeProfitPoints
		exitSide = delta.SideBuy
	}

	var slID, tpID int64

	sl, err := b.client.PlaceOrder(delta.OrderRequest{
		ProductID:     b.cfg.ProductID,
		ProductSymbol: b.cfg.Symbol,
		Side:          exitSide,
		Size:          b.cfg.OrderSize,
		LimitPrice:    delta.FormatPrice(slPrice),
		StopPrice:     delta.FormatPrice(slPrice),
		StopOrderType: delta.StopTypeLoss,
		ClientOrderID: fmt.Sprintf("sl_%d", time.Now().Unix()),
	})
	if err != nil || sl == nil || sl.ID == 0 {
		b.setError("protection", err)
		b.log.Error("failed to place stop loss order", "price", slPrice, "error", err)
	} else {
		slID = sl.ID
		b.mu.Lock()
		b.stopLossOrderID = sl.ID
		b.mu.Unlock()
		b.log.Info("stop loss order placed", "price", slPrice, "order_id", sl.ID)
	}

	pause(ctx, interLegDelay)

	tp, err := b.client.PlaceOrder(delta.OrderRequest{
		ProductID:     b.cfg.ProductID,
		ProductSymbol: b.cfg.Symbol,
		Side:          exitSide,
		Size:          b.cfg.OrderSize,
		LimitPrice:    delta.FormatPrice(tpPrice),
		ClientOrderID: fmt.Sprintf("tp_%d", time.Now().Unix()),
	})
	if err != nil || tp == nil || tp.ID == 0 {
		b.setError("protection", err)
		b.log.Error("failed to place take profit order", "price", tpPrice, "error", err)
	} else {
		tpID = tp.ID
		b.mu.Lock()
		b.takeProfitOrderID = tp.ID
		b.mu.Unlock()
		b.log.Info("take profit order placed", "price", tpPrice, "order_id", tp.ID)
	}

	if b.bus != nil && (slID != 0 || tpID != 0) {
		b.bus.PublishProtectionPlaced(b.cfg.ID, slID, tpID, slPrice, tpPrice)
	}
}

// monitorBreakeven moves the stop-loss to the entry price once unrealized
// profit reaches the trigger. Applied at most once per position lifetime, and
// only after the exchange confirms the amendment.
func (b *Bot) monitorBreakeven() {
	b.mu.RLock()
	active := b.hasPosition
	applied := b.breakevenApplied
	entry := b.entryPrice
	side := b.positionSide
	slOrderID := b.stopLossOrderID
	b.mu.RUnlock()

	if !active || applied {
		return
	}

	ticker, err := b.client.GetTicker(b.cfg.Symbol)
	if err != nil {
		b.log.Debug("ticker poll failed", "error", err)
		return
	}
	price := ticker.Close.Float64()
	if price == 0 {
		return
	}

	var profit float64
	if side == SideLong {
		profit = price - entry
	} else {
		profit = entry - price
	}

	if profit < b.cfg.BreakevenTriggerPoints {
		return
	}

	b.log.Info("breakeven trigger reached",
		"profit_points", profit, "threshold", b.cfg.BreakevenTriggerPoints)

	if slOrderID == 0 {
		b.log.Warn("no stop loss order to move to breakeven")
		return
	}

	_, err = b.client.EditOrder(delta.EditOrderRequest{
		ID:         slOrderID,
		ProductID:  b.cfg.ProductID,
		LimitPrice: delta.FormatPrice(entry),
		StopPrice:  delta.FormatPrice(entry),
	})
	if err != nil {
		b.setError("breakeven", err)
		b.log.Error("failed to move stop loss to breakeven", "error", err)
		return
	}

	b.mu.Lock()
	b.breakevenApplied = true
	b.mu.Unlock()
	b.log.Info("stop loss moved to breakeven", "entry_price", entry)
	if b.bus != nil {
		b.bus.PublishBreakevenApplied(b.cfg.ID, slOrderID, entry)
	}
}

// checkPositionClosed detects closure: the exchange reports zero size, or no
// record for the product at all. All position-scoped fields clear together.
func (b *Bot) checkPositionClosed() {
	if !b.HasPosition() {
		return
	}

	positions, err := b.client.GetPositions(b.cfg.ProductID)
	if err != nil {
		b.log.Debug("position poll failed", "error", err)
		return
	}

	for _, p := range positions {
		if p.ProductID != b.cfg.ProductID {
			continue
		}
		if p.Size.Float64() != 0 {
			return
		}
		break
	}

	b.log.Info("position closed")
	b.clearPositionState()
	b.updatePhase()
}

// clearPositionState resets all position-scoped fields in one critical
// section; a concurrent snapshot sees either all set or all cleared.
func (b *Bot) clearPositionState() {
	b.mu.Lock()
	side := b.positionSide
	entry := b.entryPrice
	b.hasPosition = false
	b.entryPrice = 0
	b.positionSide = ""
	b.breakevenApplied = false
	b.stopLossOrderID = 0
	b.takeProfitOrderID = 0
	b.mu.Unlock()

	if b.bus != nil && side != "" {
		b.bus.PublishPositionClosed(b.cfg.ID, string(side), entry)
	}
}

// shouldReset reports whether the reset interval has elapsed.
func (b *Bot) shouldReset(now time.Time) bool {
	b.mu.RLock()
	last := b.lastResetTime
	b.mu.RUnlock()
	if last.IsZero() {
		return false
	}
	return now.Sub(last) >= time.Duration(b.cfg.ResetIntervalMinutes)*time.Minute
}

// performReset cancels outstanding orders, clears state, advances the reset
// clock unconditionally, then attempts a fresh level/placement cycle. A
// failed resolve or placement never blocks the reset; the next cycle retries.
func (b *Bot) performReset(ctx context.Context) {
	b.log.Info("performing periodic reset", "timeframe", b.cfg.Timeframe)

	if err := b.client.CancelAllOrders(b.cfg.ProductID); err != nil {
		b.log.Error("failed to cancel orders during reset", "error", err)
	}

	b.mu.Lock()
	b.buyOrderID = 0
	b.sellOrderID = 0
	b.hasPosition = false
	b.entryPrice = 0
	b.positionSide = ""
	b.breakevenApplied = false
	b.stopLossOrderID = 0
	b.takeProfitOrderID = 0
	b.lastResetTime = time.Now()
	b.mu.Unlock()

	if b.bus != nil {
		b.bus.PublishCycleReset(b.cfg.ID)
	}

	high, low, ok := b.resolveLevels()
	if !ok {
		b.log.Error("failed to calculate new levels during reset, will retry next cycle")
		b.updatePhase()
		return
	}

	b.mu.Lock()
	b.prevHigh, b.prevLow = high, low
	b.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if !b.placeBreakoutOrders(ctx) {
		b.log.Warn("reset completed but orders not placed, will retry at next reset",
			"reset_interval_minutes", b.cfg.ResetIntervalMinutes)
	} else {
		b.log.Info("reset completed, new breakout orders placed")
	}
	b.updatePhase()
}

// recoverExistingPosition adopts a live exchange position after a restart so
// the bot resumes monitoring instead of stacking a fresh breakout pair.
// Returns true when a position was adopted.
func (b *Bot) recoverExistingPosition() bool {
	b.log.Info("checking for existing position to recover")

	positions, err := b.client.GetPositions(b.cfg.ProductID)
	if err != nil {
		b.log.Error("recovery position query failed", "error", err)
		return false
	}

	for _, p := range positions {
		if p.ProductID != b.cfg.ProductID {
			continue
		}
		size := p.Size.Float64()
		if size == 0 {
			continue
		}

		entry := p.EntryPrice.Float64()
		if entry == 0 {
			b.log.Warn("existing position has no entry price, not adopting")
			continue
		}

		side := SideLong
		if size < 0 {
			side = SideShort
		}

		b.mu.Lock()
		b.hasPosition = true
		b.entryPrice = entry
		b.positionSide = side
		b.breakevenApplied = false
		b.mu.Unlock()

		abs := size
		if abs < 0 {
			abs = -abs
		}
		b.log.Warn("existing position recovered",
			"side", side, "size", abs, "entry_price", entry)

		protected := b.recoverProtectiveOrders()
		if b.bus != nil {
			b.bus.PublishPositionRecovered(b.cfg.ID, string(side), entry, protected)
		}
		return true
	}

	b.log.Info("no existing position to recover")
	return false
}

// recoverProtectiveOrders classifies the product's open orders for a
// recovered position: a stop price marks the stop-loss, a plain limit order
// the take-profit. Missing protection leaves the position unprotected but
// recovery still succeeds.
func (b *Bot) recoverProtectiveOrders() bool {
	orders, err := b.client.GetOpenOrders(b.cfg.ProductID)
	if err != nil {
		b.log.Error("recovery order query failed, position unprotected", "error", err)
		return false
	}

	var slID, tpID int64
	for _, order := range orders {
		switch {
		case order.StopPrice != nil:
			slID = order.ID
			b.log.Info("stop loss order recovered",
				"order_id", order.ID, "price", order.LimitPrice.Float64())
		case order.OrderType == delta.OrderTypeLimit:
			tpID = order.ID
			b.log.Info("take profit order recovered",
				"order_id", order.ID, "price", order.LimitPrice.Float64())
		}
	}

	b.mu.Lock()
	b.stopLossOrderID = slID
	b.takeProfitOrderID = tpID
	b.mu.Unlock()

	switch {
	case slID != 0 && tpID != 0:
		b.log.Info("both protective orders recovered")
	case slID != 0:
		b.log.Warn("only stop loss recovered, take profit missing")
	case tpID != 0:
		b.log.Warn("only take profit recovered, stop loss missing")
	default:
		b.log.Warn("no protective orders found, position unprotected")
	}
	return slID != 0 || tpID != 0
}

// waitForNextCandle optionally delays order placement until the current
// candle closes plus the configured startup delay. Interruptible by context
// cancellation; any error proceeds without waiting.
func (b *Bot) waitForNextCandle(ctx context.Context) {
	if !b.cfg.WaitForNextCandle {
		return
	}

	timeframeSeconds := int64(b.cfg.timeframeMinutes()) * 60
	end := time.Now().Unix()
	start := end - 2*timeframeSeconds

	candles, err := b.client.GetHistoricalCandles(b.cfg.Symbol, b.cfg.Timeframe, start, end)
	if err != nil || len(candles) == 0 {
		b.log.Warn("could not determine candle close time, proceeding without delay", "error", err)
		return
	}

	last := candles[len(candles)-1]
	target := last.Time + timeframeSeconds + int64(b.cfg.StartupDelayMinutes)*60
	wait := time.Duration(target-time.Now().Unix()) * time.Second
	if wait <= 0 {
		b.log.Info("next candle already started, proceeding immediately")
		return
	}

	targetTime := time.Unix(target, 0).In(b.loc)
	b.log.Info("waiting for next candle before placing orders",
		"timeframe", b.cfg.Timeframe,
		"startup_delay_minutes", b.cfg.StartupDelayMinutes,
		"resume_at", targetTime.Format(time.RFC3339),
		"wait", wait.String())

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
		b.log.Info("wait complete, proceeding to place orders")
	}
}
