package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PgxPool is the pool surface the store needs; pgxmock satisfies it in tests.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists bookings and the contacts they are made for.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// Booking is one scheduled appointment created by an agent tool call.
type Booking struct {
	BusinessID uuid.UUID
	ContactID  uuid.UUID
	StartAt    time.Time
	EndAt      time.Time
	Location   *string
	Source     string
}

// CreateBooking inserts the booking and returns its id.
func (s *Store) CreateBooking(ctx context.Context, b Booking) (uuid.UUID, error) {
	if b.Source == "" {
		b.Source = "agent_tool"
	}
	query := `
		INSERT INTO bookings (business_id, contact_id, start_at, end_at, location, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, query, b.BusinessID, b.ContactID, b.StartAt, b.EndAt, b.Location, b.Source).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("booking: create booking: %w", err)
	}
	return id, nil
}

// UpsertContact creates or refreshes a contact keyed on (business, phone)
// and returns its id. Name and email only overwrite when provided.
func (s *Store) UpsertContact(ctx context.Context, businessID uuid.UUID, phone string, name, email *string) (uuid.UUID, error) {
	if phone == "" {
		return uuid.Nil, fmt.Errorf("booking: contact requires a phone number")
	}
	query := `
		INSERT INTO contacts (business_id, phone, name, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (business_id, phone) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, contacts.name),
			email = COALESCE(EXCLUDED.email, contacts.email),
			updated_at = now()
		RETURNING id
	`
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, query, businessID, phone, name, email).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("booking: upsert contact %s: %w", phone, err)
	}
	return id, nil
}
