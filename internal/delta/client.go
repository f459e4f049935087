package delta

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/logging"
)

// Retry configuration for API calls
const (
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 5 * time.Second
)

// DefaultBaseURL is the production Delta Exchange India API endpoint.
const DefaultBaseURL = "https://api.india.delta.exchange"

// Client is the Delta Exchange REST client. It signs private requests with
// HMAC-SHA256 over method + timestamp + path + queryString + body.
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
	log        *logging.Logger
}

// NewClient creates a Delta Exchange client.
func NewClient(apiKey, apiSecret, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	// Trim whitespace from keys - stray newlines break signature generation
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		apiSecret:  strings.TrimSpace(apiSecret),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logging.WithComponent("delta"),
	}
}

// FormatPrice renders a price the way the order endpoints expect: a decimal
// string without float artifacts (65000.1, not 65000.100000000001).
func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).String()
}

// apiResponse is the envelope every Delta endpoint wraps its payload in.
type apiResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

func (c *Client) sign(message string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// calculateRetryDelay returns delay with exponential backoff and jitter
func calculateRetryDelay(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<uint(attempt))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 2))
	return delay + jitter - (delay / 4)
}

// isRetryableStatus reports whether a response status is transient.
func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// request performs one API call with bounded retry and decodes the response
// envelope. The returned RawMessage is the "result" payload.
func (c *Client) request(method, path string, params url.Values, body interface{}, auth bool) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error encoding request body: %w", err)
		}
	}

	query := ""
	if len(params) > 0 {
		query = "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequest(method, c.baseURL+path+query, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "breakout-trading-bot/1.0")

		if auth {
			timestamp := strconv.FormatInt(time.Now().Unix(), 10)
			signature := c.sign(method + timestamp + path + query + string(payload))
			req.Header.Set("api-key", c.apiKey)
			req.Header.Set("timestamp", timestamp)
			req.Header.Set("signature", signature)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxRetries {
				delay := calculateRetryDelay(attempt)
				c.log.Warn("request failed, retrying",
					"method", method, "path", path,
					"attempt", attempt+1, "error", err, "delay", delay.String())
				time.Sleep(delay)
				continue
			}
			return nil, err
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
			if isRetryableStatus(resp.StatusCode) && attempt < maxRetries {
				delay := calculateRetryDelay(attempt)
				c.log.Warn("request returned retryable status",
					"method", method, "path", path,
					"status", resp.StatusCode, "attempt", attempt+1, "delay", delay.String())
				time.Sleep(delay)
				continue
			}
			return nil, lastErr
		}

		var envelope apiResponse
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return nil, fmt.Errorf("error parsing response: %w", err)
		}
		if !envelope.Success {
			return nil, fmt.Errorf("API call unsuccessful: %s", string(envelope.Error))
		}
		return envelope.Result, nil
	}

	return nil, lastErr
}

// GetHistoricalCandles fetches OHLC bars for a symbol at the given resolution.
// Start and end are unix seconds. The endpoint is public.
func (c *Client) GetHistoricalCandles(symbol, resolution string, start, end int64) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("resolution", resolution)
	params.Set("start", strconv.FormatInt(start, 10))
	params.Set("end", strconv.FormatInt(end, 10))

	result, err := c.request(http.MethodGet, "/v2/history/candles", params, nil, false)
	if err != nil {
		return nil, fmt.Errorf("error fetching candles: %w", err)
	}

	var candles []Candle
	if err := json.Unmarshal(result, &candles); err != nil {
		return nil, fmt.Errorf("error parsing candles: %w", err)
	}
	return candles, nil
}

// GetTicker fetches the current ticker for a symbol. The endpoint is public.
func (c *Client) GetTicker(symbol string) (*Ticker, error) {
	result, err := c.request(http.MethodGet, "/v2/tickers/"+symbol, nil, nil, false)
	if err != nil {
		return nil, fmt.Errorf("error fetching ticker: %w", err)
	}

	var ticker Ticker
	if err := json.Unmarshal(result, &ticker); err != nil {
		return nil, fmt.Errorf("error parsing ticker: %w", err)
	}
	return &ticker, nil
}

// GetOpenOrders lists open orders, optionally filtered by product.
func (c *Client) GetOpenOrders(productID int) ([]Order, error) {
	params := url.Values{}
	params.Set("state", "open")
	if productID > 0 {
		params.Set("product_id", strconv.Itoa(productID))
	}

	result, err := c.request(http.MethodGet, "/v2/orders", params, nil, true)
	if err != nil {
		return nil, fmt.Errorf("error fetching open orders: %w", err)
	}

	var orders []Order
	if err := json.Unmarshal(result, &orders); err != nil {
		return nil, fmt.Errorf("error parsing open orders: %w", err)
	}
	return orders, nil
}

// GetPositions lists positions, optionally filtered by product. Delta returns
// a single object when filtered by product and a list otherwise; both shapes
// normalize to a list here so callers never branch on shape.
func (c *Client) GetPositions(productID int) ([]Position, error) {
	params := url.Values{}
	if productID > 0 {
		params.Set("product_id", strconv.Itoa(productID))
	}

	result, err := c.request(http.MethodGet, "/v2/positions", params, nil, true)
	if err != nil {
		return nil, fmt.Errorf("error fetching positions: %w", err)
	}

	var positions []Position
	if err := json.Unmarshal(result, &positions); err == nil {
		return positions, nil
	}

	var single Position
	if err := json.Unmarshal(result, &single); err != nil {
		return nil, fmt.Errorf("error parsing positions: %w", err)
	}
	if single.ProductID == 0 && single.Size == 0 && single.EntryPrice == 0 {
		return nil, nil
	}
	// The product-filtered endpoint omits product_id on the single-object shape.
	if single.ProductID == 0 {
		single.ProductID = productID
	}
	return []Position{single}, nil
}

// PlaceOrder submits a new order and returns the exchange record.
func (c *Client) PlaceOrder(req OrderRequest) (*Order, error) {
	if req.OrderType == "" {
		req.OrderType = OrderTypeLimit
	}
	if req.TimeInForce == "" {
		req.TimeInForce = "gtc"
	}
	if req.StopPrice != "" && req.StopOrderType == "" {
		req.StopOrderType = StopTypeLoss
	}

	result, err := c.request(http.MethodPost, "/v2/orders", nil, req, true)
	if err != nil {
		return nil, fmt.Errorf("error placing order: %w", err)
	}

	var order Order
	if err := json.Unmarshal(result, &order); err != nil {
		return nil, fmt.Errorf("error parsing order response: %w", err)
	}
	c.log.Info("order placed",
		"side", req.Side, "size", req.Size, "limit_price", req.LimitPrice,
		"stop_price", req.StopPrice, "order_id", order.ID)
	return &order, nil
}

// EditOrder amends an existing order in place.
func (c *Client) EditOrder(req EditOrderRequest) (*Order, error) {
	result, err := c.request(http.MethodPut, "/v2/orders", nil, req, true)
	if err != nil {
		return nil, fmt.Errorf("error editing order: %w", err)
	}

	var order Order
	if err := json.Unmarshal(result, &order); err != nil {
		return nil, fmt.Errorf("error parsing edit response: %w", err)
	}
	c.log.Info("order edited", "order_id", req.ID,
		"limit_price", req.LimitPrice, "stop_price", req.StopPrice)
	return &order, nil
}

// CancelOrder cancels one order.
func (c *Client) CancelOrder(orderID int64, productID int) error {
	body := map[string]interface{}{
		"id":         orderID,
		"product_id": productID,
	}
	if _, err := c.request(http.MethodDelete, "/v2/orders", nil, body, true); err != nil {
		return fmt.Errorf("error cancelling order %d: %w", orderID, err)
	}
	c.log.Info("order cancelled", "order_id", orderID)
	return nil
}

// CancelAllOrders cancels every open order, optionally scoped to a product.
func (c *Client) CancelAllOrders(productID int) error {
	body := map[string]interface{}{}
	if productID > 0 {
		body["product_id"] = productID
	}
	if _, err := c.request(http.MethodDelete, "/v2/orders/all", nil, body, true); err != nil {
		return fmt.Errorf("error cancelling all orders: %w", err)
	}
	c.log.Info("all orders cancelled", "product_id", productID)
	return nil
}

// GetProduct fetches contract details. The endpoint is public.
func (c *Client) GetProduct(productID int) (*Product, error) {
	result, err := c.request(http.MethodGet, "/v2/products/"+strconv.Itoa(productID), nil, nil, false)
	if err != nil {
		return nil, fmt.Errorf("error fetching product: %w", err)
	}

	var product Product
	if err := json.Unmarshal(result, &product); err != nil {
		return nil, fmt.Errorf("error parsing product: %w", err)
	}
	return &product, nil
}
