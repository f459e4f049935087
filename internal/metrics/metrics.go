// Package metrics exposes Prometheus counters for the bot lifecycle, fed
// from the event bus and served at /metrics in text exposition format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/events"
)

var (
	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_orders_placed_total",
			Help: "Breakout order pairs placed",
		},
		[]string{"bot_id"},
	)

	ordersCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_orders_cancelled_total",
			Help: "Orders cancelled (opposite legs, resets)",
		},
		[]string{"bot_id"},
	)

	positionsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_positions_opened_total",
			Help: "Positions opened by breakout fills",
		},
		[]string{"bot_id", "side"},
	)

	positionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_positions_closed_total",
			Help: "Positions detected closed",
		},
		[]string{"bot_id", "side"},
	)

	breakevenApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_breakeven_applied_total",
			Help: "Stop-loss amendments to breakeven",
		},
		[]string{"bot_id"},
	)

	cycleResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_cycle_resets_total",
			Help: "Periodic level/order resets",
		},
		[]string{"bot_id"},
	)

	botErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_errors_total",
			Help: "Exchange or lifecycle errors by source",
		},
		[]string{"bot_id", "source"},
	)

	botsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "breakout_bots_running",
			Help: "Currently running bot instances",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ordersPlaced,
		ordersCancelled,
		positionsOpened,
		positionsClosed,
		breakevenApplied,
		cycleResets,
		botErrors,
		botsRunning,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Bind updates the counters from lifecycle events.
func Bind(bus *events.Bus) {
	bus.SubscribeAll(func(event events.Event) {
		switch event.Type {
		case events.TypeBotStarted:
			botsRunning.Inc()
		case events.TypeBotStopped:
			botsRunning.Dec()
		case events.TypeOrdersPlaced:
			ordersPlaced.WithLabelValues(event.BotID).Inc()
		case events.TypeOrderCancelled:
			ordersCancelled.WithLabelValues(event.BotID).Inc()
		case events.TypePositionOpened:
			positionsOpened.WithLabelValues(event.BotID, eventSide(event)).Inc()
		case events.TypePositionClosed:
			positionsClosed.WithLabelValues(event.BotID, eventSide(event)).Inc()
		case events.TypeBreakevenApplied:
			breakevenApplied.WithLabelValues(event.BotID).Inc()
		case events.TypeCycleReset:
			cycleResets.WithLabelValues(event.BotID).Inc()
		case events.TypeError:
			source, _ := event.Data["source"].(string)
			if source == "" {
				source = "unknown"
			}
			botErrors.WithLabelValues(event.BotID, source).Inc()
		}
	})
}

func eventSide(event events.Event) string {
	if side, ok := event.Data["side"].(string); ok {
		return side
	}
	return "unknown"
}
