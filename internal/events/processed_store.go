package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapleads/engage-platform/pkg/logging"
)

// ProcessedStore records provider message ids that were already handled, so
// webhook retries never produce duplicate lead messages.
type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// AlreadyProcessed checks if we've seen this provider event id.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE provider = $1 AND event_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, provider, eventID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed inserts an event id for the provider, returning false if it
// already exists. The insert is the idempotency gate: under concurrent
// retries exactly one caller sees true.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_events (provider, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// PurgeOlderThan removes entries past the retention window. Providers stop
// retrying long before then, so old ids only bloat the table.
func (s *ProcessedStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `DELETE FROM processed_events WHERE processed_at < $1`
	ct, err := s.pool.Exec(ctx, query, time.Now().UTC().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("events: purge processed: %w", err)
	}
	return ct.RowsAffected(), nil
}

// RunPurgeLoop purges expired entries on the given interval until ctx is
// cancelled. Purge failures are logged and retried on the next tick.
func (s *ProcessedStore) RunPurgeLoop(ctx context.Context, interval, retention time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := s.PurgeOlderThan(ctx, retention)
			if err != nil {
				logger.Error("processed event purge failed", "error", err)
				continue
			}
			if purged > 0 {
				logger.Info("purged processed events", "count", purged, "retention", retention.String())
			}
		}
	}
}
