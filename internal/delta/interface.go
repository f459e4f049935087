package delta

// Exchange is the capability set the trading state machine consumes. The
// concrete Client implements it; tests substitute fakes.
type Exchange interface {
	GetTicker(symbol string) (*Ticker, error)
	GetHistoricalCandles(symbol, resolution string, start, end int64) ([]Candle, error)
	GetOpenOrders(productID int) ([]Order, error)
	GetPositions(productID int) ([]Position, error)
	PlaceOrder(req OrderRequest) (*Order, error)
	EditOrder(req EditOrderRequest) (*Order, error)
	CancelOrder(orderID int64, productID int) error
	CancelAllOrders(productID int) error
}

var _ Exchange = (*Client)(nil)
