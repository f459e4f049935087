package delta

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func envelope(result interface{}) []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"success": true,
		"result":  result,
	})
	return data
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{65000, "65000"},
		{65000.5, "65000.5"},
		{0.1, "0.1"},
		{59999.99, "59999.99"},
	}
	for _, tc := range cases {
		if got := FormatPrice(tc.in); got != tc.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNumberUnmarshal(t *testing.T) {
	var v struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 65000.5, "b": "42", "c": null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A != 65000.5 || v.B != 42 || v.C != 0 {
		t.Errorf("got a=%v b=%v c=%v", v.A, v.B, v.C)
	}
}

func TestGetTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/tickers/BTCUSD" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("api-key") != "" {
			t.Error("public endpoint carried auth headers")
		}
		w.Write(envelope(map[string]interface{}{"symbol": "BTCUSD", "close": "65123.5"}))
	}))
	defer srv.Close()

	c := NewClient("", "", srv.URL)
	ticker, err := c.GetTicker("BTCUSD")
	if err != nil {
		t.Fatalf("GetTicker: %v", err)
	}
	if ticker.Close != 65123.5 {
		t.Errorf("close = %v, want 65123.5", ticker.Close)
	}
}

func TestGetHistoricalCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSD" || q.Get("resolution") != "1h" {
			t.Errorf("query = %v", q)
		}
		if q.Get("start") != "100" || q.Get("end") != "200" {
			t.Errorf("window = %s..%s", q.Get("start"), q.Get("end"))
		}
		w.Write(envelope([]map[string]interface{}{
			{"time": 100, "open": 1, "high": 2, "low": 0.5, "close": 1.5},
		}))
	}))
	defer srv.Close()

	c := NewClient("", "", srv.URL)
	candles, err := c.GetHistoricalCandles("BTCUSD", "1h", 100, 200)
	if err != nil {
		t.Fatalf("GetHistoricalCandles: %v", err)
	}
	if len(candles) != 1 || candles[0].High != 2 {
		t.Errorf("candles = %+v", candles)
	}
}

func TestRequestSignature(t *testing.T) {
	const (
		apiKey    = "test-key"
		apiSecret = "test-secret"
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != apiKey {
			t.Errorf("api-key = %q", r.Header.Get("api-key"))
		}
		timestamp := r.Header.Get("timestamp")
		if timestamp == "" {
			t.Error("missing timestamp header")
		}

		body, _ := io.ReadAll(r.Body)
		message := r.Method + timestamp + r.URL.Path + "?" + r.URL.RawQuery + string(body)
		mac := hmac.New(sha256.New, []byte(apiSecret))
		mac.Write([]byte(message))
		want := hex.EncodeToString(mac.Sum(nil))

		if got := r.Header.Get("signature"); got != want {
			t.Errorf("signature = %q, want %q", got, want)
		}
		w.Write(envelope([]Order{}))
	}))
	defer srv.Close()

	c := NewClient(apiKey, apiSecret, srv.URL)
	if _, err := c.GetOpenOrders(27); err != nil {
		t.Fatalf("GetOpenOrders: %v", err)
	}
}

func TestClientTrimsKeyWhitespace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("api-key"); got != "key" {
			t.Errorf("api-key = %q, want %q", got, "key")
		}
		w.Write(envelope([]Order{}))
	}))
	defer srv.Close()

	c := NewClient(" key\n", " secret\n", srv.URL)
	if _, err := c.GetOpenOrders(0); err != nil {
		t.Fatalf("GetOpenOrders: %v", err)
	}
}

func TestPlaceOrderDefaults(t *testing.T) {
	var received OrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/orders" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write(envelope(Order{ID: 42, State: "open"}))
	}))
	defer srv.Close()

	c := NewClient("k", "s", srv.URL)
	order, err := c.PlaceOrder(OrderRequest{
		ProductID:  27,
		Side:       SideSell,
		Size:       1,
		LimitPrice: "59000",
		StopPrice:  "59000",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.ID != 42 {
		t.Errorf("order ID = %d, want 42", order.ID)
	}
	if received.OrderType != OrderTypeLimit {
		t.Errorf("order_type = %q, want %q", received.OrderType, OrderTypeLimit)
	}
	if received.TimeInForce != "gtc" {
		t.Errorf("time_in_force = %q, want gtc", received.TimeInForce)
	}
	if received.StopOrderType != StopTypeLoss {
		t.Errorf("stop_order_type = %q, want %q", received.StopOrderType, StopTypeLoss)
	}
}

func TestGetPositionsListShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope([]map[string]interface{}{
			{"product_id": 27, "size": -2, "entry_price": "61000"},
		}))
	}))
	defer srv.Close()

	c := NewClient("k", "s", srv.URL)
	positions, err := c.GetPositions(0)
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 1 || positions[0].Size != -2 || positions[0].EntryPrice != 61000 {
		t.Errorf("positions = %+v", positions)
	}
}

func TestGetPositionsSingleObjectShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("product_id") != "27" {
			t.Errorf("product_id = %s", r.URL.Query().Get("product_id"))
		}
		w.Write(envelope(map[string]interface{}{"size": 3, "entry_price": "65000"}))
	}))
	defer srv.Close()

	c := NewClient("k", "s", srv.URL)
	positions, err := c.GetPositions(27)
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("positions = %+v", positions)
	}
	if positions[0].ProductID != 27 {
		t.Errorf("product_id not backfilled: %+v", positions[0])
	}
	if positions[0].Size != 3 || positions[0].EntryPrice != 65000 {
		t.Errorf("positions = %+v", positions)
	}
}

func TestGetPositionsEmptyObjectMeansFlat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(map[string]interface{}{}))
	}))
	defer srv.Close()

	c := NewClient("k", "s", srv.URL)
	positions, err := c.GetPositions(27)
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("positions = %+v, want none", positions)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		w.Write(envelope(map[string]interface{}{"symbol": "BTCUSD", "close": 1}))
	}))
	defer srv.Close()

	c := NewClient("", "", srv.URL)
	if _, err := c.GetTicker("BTCUSD"); err != nil {
		t.Fatalf("GetTicker after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("", "", srv.URL)
	if _, err := c.GetTicker("BTCUSD"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestUnsuccessfulEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error": {"code": "insufficient_margin"}}`))
	}))
	defer srv.Close()

	c := NewClient("k", "s", srv.URL)
	if _, err := c.PlaceOrder(OrderRequest{ProductID: 27, Side: SideBuy, Size: 1, LimitPrice: "1"}); err == nil {
		t.Fatal("expected error from unsuccessful envelope")
	}
}

func TestCancelAllOrdersScopesProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/v2/orders/all" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["product_id"] != float64(27) {
			t.Errorf("body = %v", body)
		}
		w.Write(envelope(map[string]interface{}{}))
	}))
	defer srv.Close()

	c := NewClient("k", "s", srv.URL)
	if err := c.CancelAllOrders(27); err != nil {
		t.Fatalf("CancelAllOrders: %v", err)
	}
}
