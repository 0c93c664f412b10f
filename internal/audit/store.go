package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/callboardhq/callboard/pkg/logging"
)

// PgxPool is the pool surface the store needs; pgxmock satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store writes one immutable row per received webhook delivery. Rows are
// never updated or deleted; this is the durable trail consulted when the
// structured upsert path loses an event.
type Store struct {
	pool PgxPool
	log  *logging.Logger
	now  func() time.Time
}

func NewStore(pool PgxPool, log *logging.Logger) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool, log: log, now: time.Now}
}

// Record appends a delivery to the audit trail. callID and businessID are
// nil when the payload was unparseable or the tenant unresolved; the raw
// payload is stored either way. Failures are logged and swallowed so the
// audit path can never block acknowledging the provider.
func (s *Store) Record(ctx context.Context, callID *string, businessID *uuid.UUID, eventType string, payload []byte) {
	query := `
		INSERT INTO call_events (call_id, business_id, event_type, data, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, query, callID, businessID, eventType, payload, s.now()); err != nil {
		if s.log != nil {
			s.log.Error("audit write failed", "event_type", eventType, "error", err)
		}
	}
}

// Event is one audited delivery as read back for triage.
type Event struct {
	ID         uuid.UUID  `json:"id"`
	CallID     *string    `json:"call_id"`
	BusinessID *uuid.UUID `json:"business_id"`
	EventType  string     `json:"event_type"`
	Data       []byte     `json:"data"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// ListForCall returns the audited deliveries for one call, oldest first.
func (s *Store) ListForCall(ctx context.Context, callID string) ([]Event, error) {
	query := `
		SELECT id, call_id, business_id, event_type, data, occurred_at
		FROM call_events
		WHERE call_id = $1
		ORDER BY occurred_at ASC
	`
	rows, err := s.pool.Query(ctx, query, callID)
	if err != nil {
		return nil, fmt.Errorf("audit: list events for %s: %w", callID, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var rec Event
		if err := rows.Scan(&rec.ID, &rec.CallID, &rec.BusinessID, &rec.EventType, &rec.Data, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
