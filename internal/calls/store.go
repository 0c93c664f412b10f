package calls

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
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store applies sparse patches to call records and maintains the per-phone
// call summary projection within the same transaction.
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

// The upsert merges non-destructively: every EXCLUDED value is NULL when the
// patch did not carry the field, so COALESCE keeps the stored value. Status
// is only ever non-NULL for authoritative events, which keeps a later
// call_analyzed from clobbering the end state, and an in_progress patch
// never overwrites a row whose merged ended_at is set, so a redelivered or
// late call_started cannot regress a terminal status.
// duration_seconds is a generated column, recomputed from whichever pair of
// timestamps survives the merge, so arrival order cannot skew it.
const upsertCallSQL = `
	INSERT INTO calls (
		call_id, business_id, from_number, to_number, direction,
		started_at, ended_at, disconnection_reason, status,
		transcript, transcript_json, summary, audio_url, dynamic_variables
	)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,COALESCE($9, 'in_progress'),$10,$11,$12,$13,$14)
	ON CONFLICT (call_id) DO UPDATE SET
		from_number = COALESCE(EXCLUDED.from_number, calls.from_number),
		to_number = COALESCE(EXCLUDED.to_number, calls.to_number),
		direction = COALESCE(EXCLUDED.direction, calls.direction),
		started_at = COALESCE(EXCLUDED.started_at, calls.started_at),
		ended_at = COALESCE(EXCLUDED.ended_at, calls.ended_at),
		disconnection_reason = COALESCE(EXCLUDED.disconnection_reason, calls.disconnection_reason),
		status = CASE
			WHEN $9 IS NULL THEN calls.status
			WHEN $9 = 'in_progress' AND COALESCE(EXCLUDED.ended_at, calls.ended_at) IS NOT NULL THEN calls.status
			ELSE $9
		END,
		transcript = COALESCE(EXCLUDED.transcript, calls.transcript),
		transcript_json = COALESCE(EXCLUDED.transcript_json, calls.transcript_json),
		summary = COALESCE(EXCLUDED.summary, calls.summary),
		audio_url = COALESCE(EXCLUDED.audio_url, calls.audio_url),
		dynamic_variables = COALESCE(EXCLUDED.dynamic_variables, calls.dynamic_variables),
		updated_at = now()
`

// Upsert applies one patch atomically: merge the call row, refresh the
// per-phone summary projection, and clear that phone's interaction history
// when the same customer number shows up with a new call session.
// Idempotent under redelivery; keyed on call_id.
func (s *Store) Upsert(ctx context.Context, patch Patch) error {
	if patch.CallID == "" {
		return fmt.Errorf("calls: upsert requires a call id")
	}
	if patch.BusinessID == uuid.Nil {
		return fmt.Errorf("calls: upsert requires a resolved business")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("calls: begin upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status *string
	if patch.Status != nil {
		v := string(*patch.Status)
		status = &v
	}
	if _, err := tx.Exec(ctx, upsertCallSQL,
		patch.CallID, patch.BusinessID, patch.From, patch.To, patch.Direction,
		patch.StartedAt, patch.EndedAt, patch.DisconnectionReason, status,
		patch.Transcript, patch.TranscriptJSON, patch.Summary, patch.AudioURL, patch.DynamicVariables,
	); err != nil {
		return fmt.Errorf("calls: upsert call %s: %w", patch.CallID, err)
	}

	if patch.CustomerPhone != "" {
		if err := s.projectSummary(ctx, tx, patch); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("calls: commit upsert tx: %w", err)
	}
	return nil
}

// projectSummary maintains the one-row-per-phone listing. A summary row that
// already exists for a different call id means the number called again: that
// is a fresh engagement, so the prior interaction history is dropped before
// the summary flips to the new session. Row locking on call_summaries
// serializes this against concurrent deliveries for the same phone.
func (s *Store) projectSummary(ctx context.Context, tx pgx.Tx, patch Patch) error {
	var lastCallID string
	err := tx.QueryRow(ctx,
		`SELECT last_call_id FROM call_summaries WHERE phone = $1 FOR UPDATE`,
		patch.CustomerPhone,
	).Scan(&lastCallID)
	switch {
	case err == pgx.ErrNoRows:
		// first sighting of this phone
	case err != nil:
		return fmt.Errorf("calls: load summary for %s: %w", patch.CustomerPhone, err)
	case lastCallID != patch.CallID:
		if _, err := tx.Exec(ctx, `DELETE FROM interactions WHERE phone = $1`, patch.CustomerPhone); err != nil {
			return fmt.Errorf("calls: reset interactions for %s: %w", patch.CustomerPhone, err)
		}
	}

	query := `
		INSERT INTO call_summaries (phone, business_id, business_name, last_call_id, last_status, last_call_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (phone) DO UPDATE SET
			business_id = EXCLUDED.business_id,
			business_name = EXCLUDED.business_name,
			last_call_id = EXCLUDED.last_call_id,
			last_status = EXCLUDED.last_status,
			last_call_at = EXCLUDED.last_call_at,
			updated_at = now()
	`
	if _, err := tx.Exec(ctx, query,
		patch.CustomerPhone, patch.BusinessID, patch.BusinessName,
		patch.CallID, patch.SummaryStatus(), patch.SummaryDate(s.now()),
	); err != nil {
		return fmt.Errorf("calls: upsert summary for %s: %w", patch.CustomerPhone, err)
	}
	return nil
}

// Summary is one row of the denormalized per-phone listing.
type Summary struct {
	Phone        string    `json:"phone"`
	BusinessName string    `json:"business_name"`
	LastStatus   string    `json:"status"`
	LastCallAt   time.Time `json:"date"`
}

// ListSummaries returns the most recent call per phone for a tenant,
// newest first.
func (s *Store) ListSummaries(ctx context.Context, businessID uuid.UUID, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT phone, business_name, last_status, last_call_at
		FROM call_summaries
		WHERE business_id = $1
		ORDER BY last_call_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("calls: list summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var rec Summary
		if err := rows.Scan(&rec.Phone, &rec.BusinessName, &rec.LastStatus, &rec.LastCallAt); err != nil {
			return nil, fmt.Errorf("calls: scan summary: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
