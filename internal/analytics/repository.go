package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// statsDB defines the database interface needed by Repository.
type statsDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads call aggregates for one tenant from the database.
type Repository struct {
	db statsDB
}

func NewRepository(db statsDB) *Repository {
	return &Repository{db: db}
}

// DailyRollup is one per-day bucket of call outcomes. Date is an ISO
// calendar date string; windowing compares these strings, not instants.
type DailyRollup struct {
	Date               string  `json:"date"`
	Total              int64   `json:"total"`
	Completed          int64   `json:"completed"`
	Missed             int64   `json:"missed"`
	Failed             int64   `json:"failed"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// WindowTotals is the summed outcome counts for a date window.
type WindowTotals struct {
	Total              int64   `json:"total"`
	Completed          int64   `json:"completed"`
	Missed             int64   `json:"missed"`
	Failed             int64   `json:"failed"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// DailyRollups returns per-day outcome counts for the tenant, oldest first.
// Calls without a start timestamp have no calendar day and are excluded.
func (r *Repository) DailyRollups(ctx context.Context, businessID uuid.UUID) ([]DailyRollup, error) {
	query := `
		SELECT
			to_char(started_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'missed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(AVG(duration_seconds), 0)
		FROM calls
		WHERE business_id = $1 AND started_at IS NOT NULL
		GROUP BY day
		ORDER BY day ASC
	`
	rows, err := r.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("analytics: daily rollups: %w", err)
	}
	defer rows.Close()

	var out []DailyRollup
	for rows.Next() {
		var rec DailyRollup
		if err := rows.Scan(&rec.Date, &rec.Total, &rec.Completed, &rec.Missed, &rec.Failed, &rec.AvgDurationSeconds); err != nil {
			return nil, fmt.Errorf("analytics: scan rollup: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SumWindow folds the rollup rows whose date falls inside [startDate, endDate]
// inclusive. Dates compare as ISO strings, so the window has calendar-day
// granularity. The average duration is weighted by each day's call count.
func SumWindow(rollups []DailyRollup, startDate, endDate string) WindowTotals {
	var totals WindowTotals
	var durationSum float64
	for _, day := range rollups {
		if startDate != "" && day.Date < startDate {
			continue
		}
		if endDate != "" && day.Date > endDate {
			continue
		}
		totals.Total += day.Total
		totals.Completed += day.Completed
		totals.Missed += day.Missed
		totals.Failed += day.Failed
		durationSum += day.AvgDurationSeconds * float64(day.Total)
	}
	if totals.Total > 0 {
		totals.AvgDurationSeconds = durationSum / float64(totals.Total)
	}
	return totals
}

// TotalsSince runs the precise timestamp path used for the live "today"
// window, where calendar-day rollups would lag behind the current instant.
func (r *Repository) TotalsSince(ctx context.Context, businessID uuid.UUID, since time.Time) (WindowTotals, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'missed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(AVG(duration_seconds), 0)
		FROM calls
		WHERE business_id = $1 AND started_at >= $2
	`
	var totals WindowTotals
	err := r.db.QueryRow(ctx, query, businessID, since).
		Scan(&totals.Total, &totals.Completed, &totals.Missed, &totals.Failed, &totals.AvgDurationSeconds)
	if err != nil {
		return WindowTotals{}, fmt.Errorf("analytics: totals since %s: %w", since.Format(time.RFC3339), err)
	}
	return totals, nil
}

// FirstTimeCallers counts distinct numbers whose first recorded call for the
// tenant falls inside the window.
func (r *Repository) FirstTimeCallers(ctx context.Context, businessID uuid.UUID, windowStart time.Time) (int64, error) {
	query := `
		SELECT COUNT(DISTINCT c.from_number)
		FROM calls c
		WHERE c.business_id = $1
		  AND c.from_number IS NOT NULL
		  AND c.started_at >= $2
		  AND NOT EXISTS (
			SELECT 1 FROM calls p
			WHERE p.business_id = c.business_id
			  AND p.from_number = c.from_number
			  AND p.started_at < $2
		  )
	`
	var count int64
	if err := r.db.QueryRow(ctx, query, businessID, windowStart).Scan(&count); err != nil {
		return 0, fmt.Errorf("analytics: first-time callers: %w", err)
	}
	return count, nil
}

// RepeatCaller is one ranked caller with its call count in the window.
type RepeatCaller struct {
	Phone string `json:"phone"`
	Calls int64  `json:"calls"`
}

// RepeatCallers ranks callers by call volume inside the window, capped to topN.
func (r *Repository) RepeatCallers(ctx context.Context, businessID uuid.UUID, windowStart time.Time, topN int) ([]RepeatCaller, error) {
	if topN <= 0 {
		topN = 20
	}
	query := `
		SELECT from_number, COUNT(*) AS calls
		FROM calls
		WHERE business_id = $1 AND from_number IS NOT NULL AND started_at >= $2
		GROUP BY from_number
		ORDER BY calls DESC, from_number ASC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, businessID, windowStart, topN)
	if err != nil {
		return nil, fmt.Errorf("analytics: repeat callers: %w", err)
	}
	defer rows.Close()

	var out []RepeatCaller
	for rows.Next() {
		var rec RepeatCaller
		if err := rows.Scan(&rec.Phone, &rec.Calls); err != nil {
			return nil, fmt.Errorf("analytics: scan repeat caller: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReasonCount is one disconnection reason with its frequency.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}

// DisconnectionReasons returns a histogram of raw disconnection reasons for
// ended calls in the window, most frequent first.
func (r *Repository) DisconnectionReasons(ctx context.Context, businessID uuid.UUID, windowStart time.Time) ([]ReasonCount, error) {
	query := `
		SELECT disconnection_reason, COUNT(*) AS n
		FROM calls
		WHERE business_id = $1 AND disconnection_reason IS NOT NULL AND started_at >= $2
		GROUP BY disconnection_reason
		ORDER BY n DESC, disconnection_reason ASC
	`
	rows, err := r.db.Query(ctx, query, businessID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("analytics: disconnection reasons: %w", err)
	}
	defer rows.Close()

	var out []ReasonCount
	for rows.Next() {
		var rec ReasonCount
		if err := rows.Scan(&rec.Reason, &rec.Count); err != nil {
			return nil, fmt.Errorf("analytics: scan reason: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
