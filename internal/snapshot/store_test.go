package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/config"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/bot"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/logging"
)

func TestNewStoreRequiresEnabled(t *testing.T) {
	if _, err := NewStore(config.RedisConfig{Enabled: false}); err == nil {
		t.Fatal("expected error when redis is disabled")
	}
}

func TestDegradedStoreAbsorbsOperations(t *testing.T) {
	// Port 1 on localhost refuses connections, so the store starts degraded.
	store, err := NewStore(config.RedisConfig{
		Enabled: true,
		Address: "127.0.0.1:1",
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	if store.IsHealthy() {
		t.Fatal("store should start degraded when redis is unreachable")
	}

	ctx := context.Background()
	if err := store.Save(ctx, bot.Snapshot{ID: "b1"}); err != nil {
		t.Errorf("Save on degraded store: %v", err)
	}
	snap, err := store.Load(ctx, "b1")
	if err != nil {
		t.Errorf("Load on degraded store: %v", err)
	}
	if snap != nil {
		t.Errorf("Load returned %+v, want nil", snap)
	}
	if err := store.Delete(ctx, "b1"); err != nil {
		t.Errorf("Delete on degraded store: %v", err)
	}
}

func TestDegradedOperationsScheduleHealthCheck(t *testing.T) {
	store, err := NewStore(config.RedisConfig{
		Enabled: true,
		Address: "127.0.0.1:1",
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	ops := map[string]func() error{
		"save":   func() error { return store.Save(ctx, bot.Snapshot{ID: "b1"}) },
		"load":   func() error { _, err := store.Load(ctx, "b1"); return err },
		"delete": func() error { return store.Delete(ctx, "b1") },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			store.mu.Lock()
			store.healthy = false
			store.lastCheck = time.Now().Add(-2 * store.checkInterval)
			store.mu.Unlock()

			if err := op(); err != nil {
				t.Fatalf("%s on degraded store: %v", name, err)
			}

			store.mu.RLock()
			advanced := time.Since(store.lastCheck) < store.checkInterval
			store.mu.RUnlock()
			if !advanced {
				t.Errorf("%s did not schedule a health check while degraded", name)
			}
		})
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	s := &Store{maxFailures: 3, healthy: true, log: logging.WithComponent("snapshot")}

	s.recordFailure()
	s.recordFailure()
	if !s.IsHealthy() {
		t.Fatal("store unhealthy before reaching the failure threshold")
	}
	s.recordFailure()
	if s.IsHealthy() {
		t.Fatal("store still healthy after the failure threshold")
	}

	s.recordSuccess()
	if !s.IsHealthy() {
		t.Fatal("store not healthy after recovery")
	}
	if s.failureCount != 0 {
		t.Errorf("failure count = %d, want 0 after recovery", s.failureCount)
	}
}
