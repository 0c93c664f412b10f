package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/callboardhq/callboard/pkg/logging"
)

// ErrUnknownPeriod signals an unrecognized window name in a request.
var ErrUnknownPeriod = errors.New("analytics: unknown period")

// statsRepo is the repository surface the service depends on.
type statsRepo interface {
	DailyRollups(ctx context.Context, businessID uuid.UUID) ([]DailyRollup, error)
	TotalsSince(ctx context.Context, businessID uuid.UUID, since time.Time) (WindowTotals, error)
	FirstTimeCallers(ctx context.Context, businessID uuid.UUID, windowStart time.Time) (int64, error)
	RepeatCallers(ctx context.Context, businessID uuid.UUID, windowStart time.Time, topN int) ([]RepeatCaller, error)
	DisconnectionReasons(ctx context.Context, businessID uuid.UUID, windowStart time.Time) ([]ReasonCount, error)
}

// Service computes windowed KPIs over call records, with a redis snapshot
// cache in front of the database.
type Service struct {
	repo  statsRepo
	cache *Cache
	log   *logging.Logger
	topN  int
	now   func() time.Time
}

func NewService(repo statsRepo, cache *Cache, log *logging.Logger, topN int) *Service {
	if log == nil {
		log = logging.Default()
	}
	if topN <= 0 {
		topN = 20
	}
	return &Service{repo: repo, cache: cache, log: log, topN: topN, now: time.Now}
}

// Summary is the KPI block shown at the top of the dashboard.
type Summary struct {
	Period string `json:"period"`
	WindowTotals
	AnswerRate float64 `json:"answer_rate"`
}

// Dataset is the full dashboard payload for one tenant and window.
type Dataset struct {
	Summary          Summary        `json:"summary"`
	Daily            []DailyRollup  `json:"daily"`
	FirstTimeCallers int64          `json:"first_time_callers"`
	RepeatCallers    []RepeatCaller `json:"repeat_callers"`
	Reasons          []ReasonCount  `json:"disconnection_reasons"`
}

// windowStart resolves a period name to its starting instant. The zero time
// with ok=false means an unbounded all-time window. "today" and "24h" take
// the precise timestamp path; the day-named windows use calendar dates.
func windowStart(period string, now time.Time) (time.Time, bool, error) {
	switch period {
	case "today":
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true, nil
	case "24h":
		return now.Add(-24 * time.Hour), true, nil
	case "7d":
		return now.AddDate(0, 0, -7), true, nil
	case "14d":
		return now.AddDate(0, 0, -14), true, nil
	case "30d":
		return now.AddDate(0, 0, -30), true, nil
	case "all", "":
		return time.Time{}, false, nil
	default:
		return time.Time{}, false, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
}

func precisePeriod(period string) bool {
	return period == "today" || period == "24h"
}

func answerRate(t WindowTotals) float64 {
	denom := t.Completed + t.Missed + t.Failed
	if denom == 0 {
		return 0
	}
	return float64(t.Completed) / float64(denom)
}

// KPISummary returns the headline counts for the period, serving a cached
// snapshot when one is fresh and falling back to a stale one when the
// database is down.
func (s *Service) KPISummary(ctx context.Context, businessID uuid.UUID, period string) (Summary, error) {
	if period == "" {
		period = "today"
	}
	key := fmt.Sprintf("%s:summary:%s", businessID, period)

	if data, ok := s.cache.Get(ctx, key); ok {
		var cached Summary
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	summary, err := s.computeSummary(ctx, businessID, period)
	if err != nil {
		if data, ok := s.cache.GetStale(ctx, key); ok {
			var stale Summary
			if jsonErr := json.Unmarshal(data, &stale); jsonErr == nil {
				s.log.Warn("serving stale analytics summary", "business_id", businessID, "period", period, "error", err)
				return stale, nil
			}
		}
		return Summary{}, err
	}

	if data, jsonErr := json.Marshal(summary); jsonErr == nil {
		s.cache.Store(ctx, key, data)
	}
	return summary, nil
}

func (s *Service) computeSummary(ctx context.Context, businessID uuid.UUID, period string) (Summary, error) {
	start, bounded, err := windowStart(period, s.now())
	if err != nil {
		return Summary{}, err
	}

	var totals WindowTotals
	if bounded && precisePeriod(period) {
		totals, err = s.repo.TotalsSince(ctx, businessID, start)
		if err != nil {
			return Summary{}, err
		}
	} else {
		rollups, err := s.repo.DailyRollups(ctx, businessID)
		if err != nil {
			return Summary{}, err
		}
		startDate := ""
		if bounded {
			startDate = start.UTC().Format("2006-01-02")
		}
		totals = SumWindow(rollups, startDate, "")
	}

	return Summary{Period: period, WindowTotals: totals, AnswerRate: answerRate(totals)}, nil
}

// Dashboard assembles the full dataset. The secondary aggregates degrade
// independently: a failed sub-query logs and leaves its section empty rather
// than failing the whole response.
func (s *Service) Dashboard(ctx context.Context, businessID uuid.UUID, period string) (Dataset, error) {
	if period == "" {
		period = "30d"
	}
	summary, err := s.KPISummary(ctx, businessID, period)
	if err != nil {
		return Dataset{}, err
	}
	out := Dataset{Summary: summary}

	start, bounded, err := windowStart(period, s.now())
	if err != nil {
		return Dataset{}, err
	}
	if !bounded {
		start = time.Time{}
	}

	if daily, err := s.repo.DailyRollups(ctx, businessID); err != nil {
		s.log.Error("daily rollups failed", "business_id", businessID, "error", err)
	} else {
		out.Daily = daily
	}
	if firstTime, err := s.repo.FirstTimeCallers(ctx, businessID, start); err != nil {
		s.log.Error("first-time caller count failed", "business_id", businessID, "error", err)
	} else {
		out.FirstTimeCallers = firstTime
	}
	if repeat, err := s.repo.RepeatCallers(ctx, businessID, start, s.topN); err != nil {
		s.log.Error("repeat caller ranking failed", "business_id", businessID, "error", err)
	} else {
		out.RepeatCallers = repeat
	}
	if reasons, err := s.repo.DisconnectionReasons(ctx, businessID, start); err != nil {
		s.log.Error("disconnection reason histogram failed", "business_id", businessID, "error", err)
	} else {
		out.Reasons = reasons
	}
	return out, nil
}
