// Package snapshot persists bot state views to Redis so operators can inspect
// the last known state across restarts. The store degrades gracefully: when
// Redis is unavailable writes are dropped and reads miss, the bots keep
// trading either way.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/config"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/bot"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/events"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/logging"
)

const (
	keyPrefix   = "bot:snapshot:"
	snapshotTTL = 7 * 24 * time.Hour
)

// Store writes bot snapshots to Redis with a small circuit breaker. After
// maxFailures consecutive errors the store goes unhealthy and skips Redis
// round-trips until a background ping succeeds.
type Store struct {
	client *redis.Client
	log    *logging.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewStore connects to Redis. A failed initial ping returns the store in
// degraded mode rather than an error.
func NewStore(cfg config.RedisConfig) (*Store, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	s := &Store{
		client:        client,
		log:           logging.WithComponent("snapshot"),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		s.log.Warn("initial redis connection failed, snapshot store degraded", "error", err)
		return s, nil
	}

	s.healthy = true
	s.lastCheck = time.Now()
	s.log.Info("redis connected", "address", cfg.Address)
	return s, nil
}

// IsHealthy reports whether Redis is currently usable.
func (s *Store) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

func (s *Store) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failureCount++
	if s.failureCount >= s.maxFailures {
		if s.healthy {
			s.log.Warn("redis marked unhealthy", "failures", s.failureCount)
		}
		s.healthy = false
	}
}

func (s *Store) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.healthy {
		s.log.Info("redis recovered")
	}
	s.healthy = true
	s.failureCount = 0
	s.lastCheck = time.Now()
}

// checkHealth pings Redis in the background once per interval while degraded.
func (s *Store) checkHealth() {
	s.mu.RLock()
	shouldCheck := !s.healthy && time.Since(s.lastCheck) >= s.checkInterval
	if shouldCheck {
		s.lastCheck = time.Now()
	}
	s.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.client.Ping(ctx).Err(); err == nil {
			s.recordSuccess()
		}
	}()
}

// Save persists one bot snapshot. Failures are absorbed after logging.
func (s *Store) Save(ctx context.Context, snap bot.Snapshot) error {
	s.checkHealth()
	if !s.IsHealthy() {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+snap.ID, data, snapshotTTL).Err(); err != nil {
		s.recordFailure()
		s.log.Debug("snapshot write failed", "bot_id", snap.ID, "error", err)
		return nil
	}
	s.recordSuccess()
	return nil
}

// Load reads the last stored snapshot for a bot. A miss or degraded store
// returns (nil, nil).
func (s *Store) Load(ctx context.Context, botID string) (*bot.Snapshot, error) {
	s.checkHealth()
	if !s.IsHealthy() {
		return nil, nil
	}

	data, err := s.client.Get(ctx, keyPrefix+botID).Bytes()
	if err == redis.Nil {
		s.recordSuccess()
		return nil, nil
	}
	if err != nil {
		s.recordFailure()
		return nil, nil
	}
	s.recordSuccess()

	var snap bot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", botID, err)
	}
	return &snap, nil
}

// Delete removes a bot's stored snapshot.
func (s *Store) Delete(ctx context.Context, botID string) error {
	s.checkHealth()
	if !s.IsHealthy() {
		return nil
	}
	if err := s.client.Del(ctx, keyPrefix+botID).Err(); err != nil {
		s.recordFailure()
		return nil
	}
	s.recordSuccess()
	return nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Bind saves a fresh snapshot of the emitting bot after every lifecycle
// event. The lookup resolves bot ids to current state; unknown ids are
// ignored (the bot may have been deleted).
func (s *Store) Bind(bus *events.Bus, lookup func(botID string) (bot.Snapshot, bool)) {
	bus.SubscribeAll(func(event events.Event) {
		if event.BotID == "" {
			return
		}
		snap, ok := lookup(event.BotID)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.Save(ctx, snap); err != nil {
			s.log.Debug("snapshot save after event failed", "bot_id", event.BotID, "error", err)
		}
	})
}
