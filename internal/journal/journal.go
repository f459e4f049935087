// Package journal persists bot lifecycle events to PostgreSQL. Writes are
// fire-and-forget: a broken database must never slow down or stop a trading
// loop, so failures are logged and dropped.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/config"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/events"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/logging"
)

// Journal writes lifecycle events to the lifecycle_events table.
type Journal struct {
	pool *pgxpool.Pool
	log  *logging.Logger
}

// New connects to PostgreSQL and runs the journal migration.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Journal, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("database is not enabled in configuration")
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	j := &Journal{
		pool: pool,
		log:  logging.WithComponent("journal"),
	}
	if err := j.migrate(connCtx); err != nil {
		pool.Close()
		return nil, err
	}

	j.log.Info("connected to postgres", "database", cfg.Database)
	return j, nil
}

func (j *Journal) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS lifecycle_events (
			id UUID PRIMARY KEY,
			bot_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_bot_id ON lifecycle_events(bot_id)`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_type ON lifecycle_events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_created_at ON lifecycle_events(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := j.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Record writes one event. Errors are logged, never returned.
func (j *Journal) Record(event events.Event) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		j.log.Error("failed to encode event payload", "event_id", event.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = j.pool.Exec(ctx,
		`INSERT INTO lifecycle_events (id, bot_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		event.ID, event.BotID, string(event.Type), payload, event.Timestamp,
	)
	if err != nil {
		j.log.Error("failed to record event", "event_id", event.ID, "type", event.Type, "error", err)
	}
}

// Recent returns the latest events for a bot, newest first.
func (j *Journal) Recent(ctx context.Context, botID string, limit int) ([]events.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := j.pool.Query(ctx,
		`SELECT id, bot_id, event_type, payload, created_at
		 FROM lifecycle_events
		 WHERE bot_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		botID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			e       events.Event
			typ     string
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.BotID, &typ, &payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = events.Type(typ)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Data); err != nil {
				j.log.Warn("corrupt event payload", "event_id", e.ID, "error", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Bind subscribes the journal to every event on the bus.
func (j *Journal) Bind(bus *events.Bus) {
	bus.SubscribeAll(j.Record)
}

// Close releases the connection pool.
func (j *Journal) Close() {
	j.pool.Close()
}
