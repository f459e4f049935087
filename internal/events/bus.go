package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies a lifecycle event published by a bot instance.
type Type string

const (
	TypeBotStarted        Type = "BOT_STARTED"
	TypeBotStopped        Type = "BOT_STOPPED"
	TypeOrdersPlaced      Type = "BREAKOUT_ORDERS_PLACED"
	TypeOrderCancelled    Type = "ORDER_CANCELLED"
	TypePositionOpened    Type = "POSITION_OPENED"
	TypeProtectionPlaced  Type = "PROTECTION_PLACED"
	TypeBreakevenApplied  Type = "BREAKEVEN_APPLIED"
	TypePositionClosed    Type = "POSITION_CLOSED"
	TypeCycleReset        Type = "CYCLE_RESET"
	TypePositionRecovered Type = "POSITION_RECOVERED"
	TypeError             Type = "ERROR"
)

// Event is one entry in a bot's lifecycle stream.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	BotID     string                 `json:"bot_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Subscriber is a function that handles events.
type Subscriber func(Event)

// Bus fans events out to subscribers. Delivery is asynchronous so publishers
// on the trading path never block on a slow consumer.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[Type][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type.
func (b *Bus) Subscribe(eventType Type, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events.
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Missing ids and timestamps are
// filled in so every delivered event is journal-ready.
func (b *Bus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if subs, ok := b.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}
	for _, sub := range b.allSubs {
		go sub(event)
	}
}

// PublishBotStarted publishes a bot started event.
func (b *Bus) PublishBotStarted(botID, symbol, timeframe string) {
	b.Publish(Event{
		Type:  TypeBotStarted,
		BotID: botID,
		Data: map[string]interface{}{
			"symbol":    symbol,
			"timeframe": timeframe,
		},
	})
}

// PublishBotStopped publishes a bot stopped event.
func (b *Bus) PublishBotStopped(botID string) {
	b.Publish(Event{Type: TypeBotStopped, BotID: botID})
}

// PublishOrdersPlaced publishes a breakout pair placement event.
func (b *Bus) PublishOrdersPlaced(botID string, buyOrderID, sellOrderID int64, high, low float64) {
	b.Publish(Event{
		Type:  TypeOrdersPlaced,
		BotID: botID,
		Data: map[string]interface{}{
			"buy_order_id":  buyOrderID,
			"sell_order_id": sellOrderID,
			"buy_price":     high,
			"sell_price":    low,
		},
	})
}

// PublishOrderCancelled publishes an order cancellation event.
func (b *Bus) PublishOrderCancelled(botID string, orderID int64, reason string) {
	b.Publish(Event{
		Type:  TypeOrderCancelled,
		BotID: botID,
		Data: map[string]interface{}{
			"order_id": orderID,
			"reason":   reason,
		},
	})
}

// PublishPositionOpened publishes a fill-detected event.
func (b *Bus) PublishPositionOpened(botID, side string, entryPrice, size float64) {
	b.Publish(Event{
		Type:  TypePositionOpened,
		BotID: botID,
		Data: map[string]interface{}{
			"side":        side,
			"entry_price": entryPrice,
			"size":        size,
		},
	})
}

// PublishProtectionPlaced publishes a stop-loss/take-profit placement event.
func (b *Bus) PublishProtectionPlaced(botID string, stopLossOrderID, takeProfitOrderID int64, stopLoss, takeProfit float64) {
	b.Publish(Event{
		Type:  TypeProtectionPlaced,
		BotID: botID,
		Data: map[string]interface{}{
			"stop_loss_order_id":   stopLossOrderID,
			"take_profit_order_id": takeProfitOrderID,
			"stop_loss":            stopLoss,
			"take_profit":          takeProfit,
		},
	})
}

// PublishBreakevenApplied publishes a breakeven ratchet event.
func (b *Bus) PublishBreakevenApplied(botID string, stopLossOrderID int64, entryPrice float64) {
	b.Publish(Event{
		Type:  TypeBreakevenApplied,
		BotID: botID,
		Data: map[string]interface{}{
			"stop_loss_order_id": stopLossOrderID,
			"entry_price":        entryPrice,
		},
	})
}

// PublishPositionClosed publishes a position close event.
func (b *Bus) PublishPositionClosed(botID, side string, entryPrice float64) {
	b.Publish(Event{
		Type:  TypePositionClosed,
		BotID: botID,
		Data: map[string]interface{}{
			"side":        side,
			"entry_price": entryPrice,
		},
	})
}

// PublishCycleReset publishes a periodic reset event.
func (b *Bus) PublishCycleReset(botID string) {
	b.Publish(Event{Type: TypeCycleReset, BotID: botID})
}

// PublishPositionRecovered publishes a startup recovery event.
func (b *Bus) PublishPositionRecovered(botID, side string, entryPrice float64, protected bool) {
	b.Publish(Event{
		Type:  TypePositionRecovered,
		BotID: botID,
		Data: map[string]interface{}{
			"side":        side,
			"entry_price": entryPrice,
			"protected":   protected,
		},
	})
}

// PublishError publishes an error event.
func (b *Bus) PublishError(botID, source string, err error) {
	data := map[string]interface{}{
		"source": source,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	b.Publish(Event{Type: TypeError, BotID: botID, Data: data})
}
