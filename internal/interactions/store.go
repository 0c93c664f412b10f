package interactions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the pool surface the store needs; pgxmock satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// logEntry is one stored message in either direction sequence.
type logEntry struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Entry is one merged history item tagged with its origin direction.
type Entry struct {
	Direction string    `json:"direction"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Store keeps one append-only SMS conversation log per phone number.
// Appends use jsonb concatenation in the database so concurrent writers
// never lose each other's entries.
type Store struct {
	pool PgxPool
	now  func() time.Time
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool, now: time.Now}
}

const appendOutboundSQL = `
	INSERT INTO interactions (phone, business_id, outbound, inbound)
	VALUES ($1, $2, $3::jsonb, '[]'::jsonb)
	ON CONFLICT (phone) DO UPDATE SET
		outbound = interactions.outbound || $3::jsonb,
		updated_at = now()
`

const appendInboundSQL = `
	INSERT INTO interactions (phone, business_id, outbound, inbound, recent_reply)
	VALUES ($1, $2, '[]'::jsonb, $3::jsonb, $4)
	ON CONFLICT (phone) DO UPDATE SET
		inbound = interactions.inbound || $3::jsonb,
		recent_reply = $4,
		updated_at = now()
`

// RecordOutbound appends a sent message to the phone's outbound sequence.
func (s *Store) RecordOutbound(ctx context.Context, businessID uuid.UUID, phone, message string) error {
	if phone == "" {
		return fmt.Errorf("interactions: record outbound requires a phone number")
	}
	entry, err := marshalEntry(message, s.now())
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, appendOutboundSQL, phone, businessParam(businessID), entry); err != nil {
		return fmt.Errorf("interactions: append outbound for %s: %w", phone, err)
	}
	return nil
}

// RecordInbound appends a received message to the phone's inbound sequence
// and refreshes the denormalized recent_reply pointer.
func (s *Store) RecordInbound(ctx context.Context, businessID uuid.UUID, phone, message string) error {
	if phone == "" {
		return fmt.Errorf("interactions: record inbound requires a phone number")
	}
	entry, err := marshalEntry(message, s.now())
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, appendInboundSQL, phone, businessParam(businessID), entry, message); err != nil {
		return fmt.Errorf("interactions: append inbound for %s: %w", phone, err)
	}
	return nil
}

// businessParam maps the zero UUID to NULL: inbound SMS from unknown numbers
// may not resolve to a tenant but is still worth recording.
func businessParam(businessID uuid.UUID) any {
	if businessID == uuid.Nil {
		return nil
	}
	return businessID
}

func marshalEntry(message string, at time.Time) ([]byte, error) {
	data, err := json.Marshal([]logEntry{{Message: message, Timestamp: at}})
	if err != nil {
		return nil, fmt.Errorf("interactions: marshal entry: %w", err)
	}
	return data, nil
}

// History returns the phone's merged conversation, oldest first, each entry
// tagged outbound or inbound. An untracked phone yields an empty history.
func (s *Store) History(ctx context.Context, phone string) ([]Entry, error) {
	var outboundRaw, inboundRaw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT outbound, inbound FROM interactions WHERE phone = $1`,
		phone,
	).Scan(&outboundRaw, &inboundRaw)
	if err == pgx.ErrNoRows {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("interactions: load history for %s: %w", phone, err)
	}

	merged, err := mergeHistory(outboundRaw, inboundRaw)
	if err != nil {
		return nil, fmt.Errorf("interactions: history for %s: %w", phone, err)
	}
	return merged, nil
}

// RecentReply returns the last inbound message text for the phone, empty
// when the number has never replied.
func (s *Store) RecentReply(ctx context.Context, phone string) (string, error) {
	var reply *string
	err := s.pool.QueryRow(ctx,
		`SELECT recent_reply FROM interactions WHERE phone = $1`,
		phone,
	).Scan(&reply)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("interactions: load recent reply for %s: %w", phone, err)
	}
	if reply == nil {
		return "", nil
	}
	return *reply, nil
}

func mergeHistory(outboundRaw, inboundRaw []byte) ([]Entry, error) {
	outbound, err := decodeSequence(outboundRaw)
	if err != nil {
		return nil, fmt.Errorf("decode outbound: %w", err)
	}
	inbound, err := decodeSequence(inboundRaw)
	if err != nil {
		return nil, fmt.Errorf("decode inbound: %w", err)
	}

	merged := make([]Entry, 0, len(outbound)+len(inbound))
	for _, e := range outbound {
		merged = append(merged, Entry{Direction: "outbound", Message: e.Message, Timestamp: e.Timestamp})
	}
	for _, e := range inbound {
		merged = append(merged, Entry{Direction: "inbound", Message: e.Message, Timestamp: e.Timestamp})
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged, nil
}

func decodeSequence(raw []byte) ([]logEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []logEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
