package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/bot"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/delta"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/events"
)

// stubExchange keeps a launched bot idle: no position to recover, no candles
// to resolve levels from.
type stubExchange struct {
	cancelAllCalls int
}

func (s *stubExchange) GetTicker(string) (*delta.Ticker, error) { return &delta.Ticker{}, nil }
func (s *stubExchange) GetHistoricalCandles(string, string, int64, int64) ([]delta.Candle, error) {
	return nil, nil
}
func (s *stubExchange) GetOpenOrders(int) ([]delta.Order, error)        { return nil, nil }
func (s *stubExchange) GetPositions(int) ([]delta.Position, error)      { return nil, nil }
func (s *stubExchange) PlaceOrder(delta.OrderRequest) (*delta.Order, error) {
	return nil, errors.New("not supported")
}
func (s *stubExchange) EditOrder(delta.EditOrderRequest) (*delta.Order, error) {
	return nil, errors.New("not supported")
}
func (s *stubExchange) CancelOrder(int64, int) error { return nil }
func (s *stubExchange) CancelAllOrders(int) error {
	s.cancelAllCalls++
	return nil
}

func newIdleBot(t *testing.T, id string) (*bot.Bot, *stubExchange) {
	t.Helper()
	ex := &stubExchange{}
	b, err := bot.New(bot.Config{
		ID:                     id,
		Symbol:                 "BTCUSD",
		ProductID:              27,
		OrderSize:              1,
		StopLossPoints:         500,
		TakeProfitPoints:       1000,
		BreakevenTriggerPoints: 250,
		Timeframe:              "1h",
	}, ex, events.NewBus())
	if err != nil {
		t.Fatalf("bot.New: %v", err)
	}
	return b, ex
}

func TestStartAndStop(t *testing.T) {
	r := New()
	b, ex := newIdleBot(t, "b1")

	runID, err := r.Start(b)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if runID == "" {
		t.Error("empty run id")
	}
	if !r.IsRunning("b1") {
		t.Error("bot not reported running after Start")
	}

	if err := r.Stop("b1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if r.IsRunning("b1") {
		t.Error("bot reported running after Stop")
	}
	if ex.cancelAllCalls != 1 {
		t.Errorf("cancel-all calls = %d, want 1 (orders cancelled on stop)", ex.cancelAllCalls)
	}
}

func TestStartTwiceFails(t *testing.T) {
	r := New()
	b, _ := newIdleBot(t, "b1")

	if _, err := r.Start(b); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	t.Cleanup(func() { r.StopAll() })

	if _, err := r.Start(b); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start err = %v, want ErrAlreadyRunning", err)
	}
}

func TestRestartAfterStopGetsNewRunID(t *testing.T) {
	r := New()
	b, _ := newIdleBot(t, "b1")

	first, err := r.Start(b)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Stop("b1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	second, err := r.Start(b)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	t.Cleanup(func() { r.StopAll() })
	if second == first {
		t.Error("restart reused the previous run id")
	}
}

func TestStopUnknownBot(t *testing.T) {
	r := New()
	if err := r.Stop("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stop err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRefusesRunningBot(t *testing.T) {
	r := New()
	b, _ := newIdleBot(t, "b1")
	if _, err := r.Start(b); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := r.Delete("b1"); !errors.Is(err, ErrStillRunning) {
		t.Errorf("Delete err = %v, want ErrStillRunning", err)
	}

	if err := r.Stop("b1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := r.Delete("b1"); err != nil {
		t.Errorf("Delete after stop: %v", err)
	}
	if _, err := r.Get("b1"); !errors.Is(err, ErrNotFound) {
		t.Error("bot still registered after Delete")
	}
}

func TestListAndSnapshot(t *testing.T) {
	r := New()
	b1, _ := newIdleBot(t, "b1")
	b2, _ := newIdleBot(t, "b2")
	if _, err := r.Start(b1); err != nil {
		t.Fatalf("Start b1: %v", err)
	}
	if _, err := r.Start(b2); err != nil {
		t.Fatalf("Start b2: %v", err)
	}
	t.Cleanup(func() { r.StopAll() })

	if got := len(r.List()); got != 2 {
		t.Errorf("List len = %d, want 2", got)
	}

	st, err := r.Snapshot("b1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !st.Running || st.State.ID != "b1" {
		t.Errorf("snapshot = %+v, want running b1", st)
	}
	if _, err := r.Snapshot("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Snapshot err = %v, want ErrNotFound", err)
	}
}

func TestStopAll(t *testing.T) {
	r := New()
	for _, id := range []string{"b1", "b2", "b3"} {
		b, _ := newIdleBot(t, id)
		if _, err := r.Start(b); err != nil {
			t.Fatalf("Start %s: %v", id, err)
		}
	}

	done := make(chan struct{})
	go func() {
		r.StopAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StopAll did not finish")
	}

	for _, st := range r.List() {
		if st.Running {
			t.Errorf("bot %s still running after StopAll", st.State.ID)
		}
	}
}
