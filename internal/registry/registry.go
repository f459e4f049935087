package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/bot"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/logging"
)

var (
	// ErrAlreadyRunning is returned by Start when the bot is already live.
	ErrAlreadyRunning = errors.New("bot already running")
	// ErrNotFound is returned when no bot with the given id is registered.
	ErrNotFound = errors.New("bot not found")
	// ErrStillRunning is returned by Delete for a live bot.
	ErrStillRunning = errors.New("bot still running, stop it first")
)

// stopTimeout bounds how long Stop waits for a bot goroutine to drain.
const stopTimeout = 15 * time.Second

type instance struct {
	bot    *bot.Bot
	runID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns the lifecycle of bot instances: one goroutine per running
// bot, registered under the bot id.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*instance
	log       *logging.Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		instances: make(map[string]*instance),
		log:       logging.WithComponent("registry"),
	}
}

// Start launches a bot's run loop on its own goroutine and returns the run
// id for this activation. Starting an already-running bot fails.
func (r *Registry) Start(b *bot.Bot) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.instances[b.ID()]; ok {
		select {
		case <-existing.done:
			// Previous run finished; fall through and replace it.
		default:
			return "", ErrAlreadyRunning
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	inst := &instance{
		bot:    b,
		runID:  uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.instances[b.ID()] = inst

	go func() {
		defer close(inst.done)
		b.Run(ctx)
	}()

	r.log.Info("bot started", "bot_id", b.ID(), "run_id", inst.runID)
	return inst.runID, nil
}

// Stop cancels a running bot, waits for its goroutine to exit, then cancels
// the bot's outstanding exchange orders. Stopping an already-stopped bot is
// a no-op.
func (r *Registry) Stop(botID string) error {
	r.mu.RLock()
	inst, ok := r.instances[botID]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	inst.cancel()
	select {
	case <-inst.done:
	case <-time.After(stopTimeout):
		return fmt.Errorf("bot %s did not stop within %s", botID, stopTimeout)
	}

	if err := inst.bot.Client().CancelAllOrders(inst.bot.ProductID()); err != nil {
		r.log.Error("failed to cancel orders on stop", "bot_id", botID, "error", err)
	}

	r.log.Info("bot stopped", "bot_id", botID, "run_id", inst.runID)
	return nil
}

// Delete removes a stopped bot from the registry.
func (r *Registry) Delete(botID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[botID]
	if !ok {
		return ErrNotFound
	}
	select {
	case <-inst.done:
	default:
		return ErrStillRunning
	}

	delete(r.instances, botID)
	r.log.Info("bot deleted", "bot_id", botID)
	return nil
}

// Get returns the bot with the given id.
func (r *Registry) Get(botID string) (*bot.Bot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[botID]
	if !ok {
		return nil, ErrNotFound
	}
	return inst.bot, nil
}

// IsRunning reports whether the bot's goroutine is still live.
func (r *Registry) IsRunning(botID string) bool {
	r.mu.RLock()
	inst, ok := r.instances[botID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case <-inst.done:
		return false
	default:
		return true
	}
}

// Status describes one registered bot for the control plane.
type Status struct {
	RunID   string       `json:"run_id"`
	Running bool         `json:"running"`
	State   bot.Snapshot `json:"state"`
}

// Snapshot returns the status of one bot.
func (r *Registry) Snapshot(botID string) (Status, error) {
	r.mu.RLock()
	inst, ok := r.instances[botID]
	r.mu.RUnlock()
	if !ok {
		return Status{}, ErrNotFound
	}
	return r.status(inst), nil
}

// List returns the status of every registered bot.
func (r *Registry) List() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, r.status(inst))
	}
	return out
}

func (r *Registry) status(inst *instance) Status {
	running := true
	select {
	case <-inst.done:
		running = false
	default:
	}
	return Status{
		RunID:   inst.runID,
		Running: running,
		State:   inst.bot.Snapshot(),
	}
}

// StopAll stops every running bot; used during graceful shutdown.
func (r *Registry) StopAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		if !r.IsRunning(id) {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := r.Stop(id); err != nil {
				r.log.Error("shutdown stop failed", "bot_id", id, "error", err)
			}
		}(id)
	}
	wg.Wait()
}
