package tenancy

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrUnresolved is returned when no tenant can be determined for an event.
// Callers must not write structured call state under an unresolved tenant.
var ErrUnresolved = errors.New("tenancy: no business resolved for event")

type mappingLookup interface {
	BusinessExists(ctx context.Context, id uuid.UUID) (bool, error)
	BusinessForAgent(ctx context.Context, agentID string) (uuid.UUID, error)
}

// Resolver maps an inbound event to a tenant. The chain is ordered and
// read-only: explicit business id in payload metadata, then the agent
// mapping table, then a configured dev fallback outside production.
// Mappings are provisioned out of band, never as a request side effect.
type Resolver struct {
	store       mappingLookup
	devFallback uuid.UUID
	production  bool
}

func NewResolver(store mappingLookup, devFallbackBusinessID string, production bool) *Resolver {
	r := &Resolver{store: store, production: production}
	if id, err := uuid.Parse(strings.TrimSpace(devFallbackBusinessID)); err == nil {
		r.devFallback = id
	}
	return r
}

// Resolve returns the tenant for the (explicit business id, agent id) pair
// carried by an event. First success wins.
func (r *Resolver) Resolve(ctx context.Context, businessID, agentID string) (uuid.UUID, error) {
	if id, err := uuid.Parse(strings.TrimSpace(businessID)); err == nil {
		exists, err := r.store.BusinessExists(ctx, id)
		if err != nil {
			return uuid.Nil, err
		}
		if exists {
			return id, nil
		}
	}

	if agentID = strings.TrimSpace(agentID); agentID != "" {
		id, err := r.store.BusinessForAgent(ctx, agentID)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrUnresolved) {
			return uuid.Nil, err
		}
	}

	if !r.production && r.devFallback != uuid.Nil {
		return r.devFallback, nil
	}
	return uuid.Nil, ErrUnresolved
}
