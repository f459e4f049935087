package delta

import (
	"strconv"
	"strings"
)

// Number decodes JSON values that Delta sends either as a number or as a
// quoted numeric string ("1", "65000.5").
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Float64 returns the value as a plain float64.
func (n Number) Float64() float64 {
	return float64(n)
}

// Candle is one OHLC bar from /v2/history/candles.
type Candle struct {
	Time  int64  `json:"time"`
	Open  Number `json:"open"`
	High  Number `json:"high"`
	Low   Number `json:"low"`
	Close Number `json:"close"`
}

// Ticker is the result of /v2/tickers/{symbol}. Close carries the last price.
type Ticker struct {
	Symbol string `json:"symbol"`
	Close  Number `json:"close"`
}

// Order is an exchange order record. StopPrice is nil for plain limit orders;
// its presence is what distinguishes a stop order from a resting limit.
type Order struct {
	ID            int64   `json:"id"`
	ProductID     int     `json:"product_id"`
	ClientOrderID string  `json:"client_order_id"`
	Side          string  `json:"side"`
	Size          int     `json:"size"`
	OrderType     string  `json:"order_type"`
	LimitPrice    Number  `json:"limit_price"`
	StopPrice     *Number `json:"stop_price"`
	State         string  `json:"state"`
}

// Position is an exchange position record for one product.
type Position struct {
	ProductID  int    `json:"product_id"`
	Size       Number `json:"size"`
	EntryPrice Number `json:"entry_price"`
}

// Product describes a tradable contract.
type Product struct {
	ID       int    `json:"id"`
	Symbol   string `json:"symbol"`
	TickSize Number `json:"tick_size"`
	State    string `json:"state"`
}

// Order type and side constants as Delta spells them on the wire.
const (
	OrderTypeLimit = "limit_order"
	StopTypeLoss   = "stop_loss_order"

	SideBuy  = "buy"
	SideSell = "sell"
)

// OrderRequest is the body of POST /v2/orders. Prices travel as strings.
type OrderRequest struct {
	ProductID     int    `json:"product_id"`
	ProductSymbol string `json:"product_symbol"`
	Side          string `json:"side"`
	Size          int    `json:"size"`
	OrderType     string `json:"order_type"`
	LimitPrice    string `json:"limit_price"`
	TimeInForce   string `json:"time_in_force"`
	PostOnly      bool   `json:"post_only"`
	StopPrice     string `json:"stop_price,omitempty"`
	StopOrderType string `json:"stop_order_type,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// EditOrderRequest is the body of PUT /v2/orders. Zero-valued optional fields
// are omitted so the exchange keeps the current values.
type EditOrderRequest struct {
	ID         int64  `json:"id"`
	ProductID  int    `json:"product_id"`
	LimitPrice string `json:"limit_price,omitempty"`
	StopPrice  string `json:"stop_price,omitempty"`
	Size       int    `json:"size,omitempty"`
}
