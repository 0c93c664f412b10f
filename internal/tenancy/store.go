package tenancy

import (
	"context"
	"fmt"
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

// Business is one tenant account. All call and interaction data is scoped to one.
type Business struct {
	ID           uuid.UUID
	Name         string
	Timezone     string
	Paused       bool
	PausedReason *string
	PausedUntil  *time.Time
	CreatedAt    time.Time
}

// Store persists tenants and agent-to-tenant mappings in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

func (s *Store) CreateBusiness(ctx context.Context, name, timezone string) (uuid.UUID, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	id := uuid.New()
	query := `
		INSERT INTO businesses (id, name, timezone)
		VALUES ($1, $2, $3)
	`
	if _, err := s.pool.Exec(ctx, query, id, name, timezone); err != nil {
		return uuid.Nil, fmt.Errorf("tenancy: create business: %w", err)
	}
	return id, nil
}

func (s *Store) GetBusiness(ctx context.Context, id uuid.UUID) (*Business, error) {
	query := `
		SELECT id, name, timezone, paused, paused_reason, paused_until, created_at
		FROM businesses
		WHERE id = $1
	`
	var b Business
	if err := s.pool.QueryRow(ctx, query, id).Scan(&b.ID, &b.Name, &b.Timezone, &b.Paused, &b.PausedReason, &b.PausedUntil, &b.CreatedAt); err != nil {
		return nil, fmt.Errorf("tenancy: get business: %w", err)
	}
	return &b, nil
}

// BusinessExists reports whether the id refers to a provisioned tenant.
func (s *Store) BusinessExists(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `SELECT 1 FROM businesses WHERE id = $1`
	var exists int
	if err := s.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("tenancy: check business: %w", err)
	}
	return true, nil
}

// EarliestBusiness returns the oldest tenant. Provisioning tooling uses it to
// pick a default mapping target for single-tenant installs; the request-path
// resolver never does.
func (s *Store) EarliestBusiness(ctx context.Context) (uuid.UUID, error) {
	query := `SELECT id FROM businesses ORDER BY created_at ASC LIMIT 1`
	var id uuid.UUID
	if err := s.pool.QueryRow(ctx, query).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("tenancy: earliest business: %w", err)
	}
	return id, nil
}

// UpsertAgentMapping binds a provider agent id to a tenant.
func (s *Store) UpsertAgentMapping(ctx context.Context, agentID string, businessID uuid.UUID) error {
	query := `
		INSERT INTO agent_mappings (agent_id, business_id)
		VALUES ($1, $2)
		ON CONFLICT (agent_id) DO UPDATE
		SET business_id = EXCLUDED.business_id
	`
	if _, err := s.pool.Exec(ctx, query, agentID, businessID); err != nil {
		return fmt.Errorf("tenancy: upsert agent mapping: %w", err)
	}
	return nil
}

func (s *Store) BusinessForAgent(ctx context.Context, agentID string) (uuid.UUID, error) {
	query := `SELECT business_id FROM agent_mappings WHERE agent_id = $1`
	var id uuid.UUID
	if err := s.pool.QueryRow(ctx, query, agentID).Scan(&id); err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, ErrUnresolved
		}
		return uuid.Nil, fmt.Errorf("tenancy: lookup agent mapping: %w", err)
	}
	return id, nil
}
