package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type stubRepo struct {
	rollups    []DailyRollup
	totals     WindowTotals
	firstTime  int64
	repeat     []RepeatCaller
	reasons    []ReasonCount
	err        error
	totalCalls int
}

func (s *stubRepo) DailyRollups(ctx context.Context, businessID uuid.UUID) ([]DailyRollup, error) {
	return s.rollups, s.err
}

func (s *stubRepo) TotalsSince(ctx context.Context, businessID uuid.UUID, since time.Time) (WindowTotals, error) {
	s.totalCalls++
	return s.totals, s.err
}

func (s *stubRepo) FirstTimeCallers(ctx context.Context, businessID uuid.UUID, windowStart time.Time) (int64, error) {
	return s.firstTime, s.err
}

func (s *stubRepo) RepeatCallers(ctx context.Context, businessID uuid.UUID, windowStart time.Time, topN int) ([]RepeatCaller, error) {
	return s.repeat, s.err
}

func (s *stubRepo) DisconnectionReasons(ctx context.Context, businessID uuid.UUID, windowStart time.Time) ([]ReasonCount, error) {
	return s.reasons, s.err
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(client, 30*time.Second, 5*time.Minute)
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 1, 15, 30, 0, 0, time.UTC)
}

func TestWindowStart(t *testing.T) {
	now := fixedNow()

	start, bounded, err := windowStart("today", now)
	if err != nil || !bounded {
		t.Fatalf("today: bounded=%v err=%v", bounded, err)
	}
	if want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("today start = %s, want %s", start, want)
	}

	start, bounded, err = windowStart("7d", now)
	if err != nil || !bounded || !start.Equal(now.AddDate(0, 0, -7)) {
		t.Fatalf("7d: start=%s bounded=%v err=%v", start, bounded, err)
	}

	if _, bounded, err = windowStart("all", now); err != nil || bounded {
		t.Fatalf("all: bounded=%v err=%v", bounded, err)
	}
	if _, bounded, err = windowStart("", now); err != nil || bounded {
		t.Fatalf("empty: bounded=%v err=%v", bounded, err)
	}
	if _, _, err = windowStart("fortnight", now); err == nil {
		t.Fatalf("expected error for unknown period")
	}
}

func TestAnswerRate(t *testing.T) {
	if got := answerRate(WindowTotals{}); got != 0 {
		t.Fatalf("zero denominator: got %v, want 0", got)
	}
	if got := answerRate(WindowTotals{Completed: 3, Missed: 1, Failed: 0}); got != 0.75 {
		t.Fatalf("answer rate = %v, want 0.75", got)
	}
}

func TestKPISummaryTodayUsesPrecisePath(t *testing.T) {
	repo := &stubRepo{totals: WindowTotals{Total: 5, Completed: 4, Missed: 1, AvgDurationSeconds: 90}}
	svc := NewService(repo, newTestCache(t), nil, 20)
	svc.now = fixedNow

	summary, err := svc.KPISummary(context.Background(), uuid.New(), "today")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if repo.totalCalls != 1 {
		t.Fatalf("expected the precise timestamp query, got %d calls", repo.totalCalls)
	}
	if summary.Total != 5 || summary.AnswerRate != 0.8 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestKPISummaryWindowedUsesRollups(t *testing.T) {
	repo := &stubRepo{rollups: []DailyRollup{
		{Date: "2025-02-20", Total: 3, Completed: 2, Missed: 1},
		{Date: "2025-02-28", Total: 2, Completed: 2},
	}}
	svc := NewService(repo, newTestCache(t), nil, 20)
	svc.now = fixedNow

	// 7d window starts 2025-02-22: only the later rollup falls inside
	summary, err := svc.KPISummary(context.Background(), uuid.New(), "7d")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if repo.totalCalls != 0 {
		t.Fatalf("windowed period must not take the precise path")
	}
	if summary.Total != 2 || summary.Completed != 2 || summary.AnswerRate != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestKPISummaryServedFromCache(t *testing.T) {
	repo := &stubRepo{totals: WindowTotals{Total: 5, Completed: 5}}
	svc := NewService(repo, newTestCache(t), nil, 20)
	svc.now = fixedNow
	businessID := uuid.New()

	if _, err := svc.KPISummary(context.Background(), businessID, "today"); err != nil {
		t.Fatalf("first summary: %v", err)
	}
	repo.err = errors.New("db down")
	summary, err := svc.KPISummary(context.Background(), businessID, "today")
	if err != nil {
		t.Fatalf("cached summary: %v", err)
	}
	if summary.Total != 5 {
		t.Fatalf("expected cached totals, got %+v", summary)
	}
	if repo.totalCalls != 1 {
		t.Fatalf("second request should not hit the repo, got %d calls", repo.totalCalls)
	}
}

func TestKPISummaryStaleFallback(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := NewCache(client, 30*time.Second, 5*time.Minute)

	repo := &stubRepo{totals: WindowTotals{Total: 7, Completed: 6, Missed: 1}}
	svc := NewService(repo, cache, nil, 20)
	svc.now = fixedNow
	businessID := uuid.New()

	if _, err := svc.KPISummary(context.Background(), businessID, "today"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	// fresh copy expires, stale copy survives, database goes down
	mr.FastForward(time.Minute)
	repo.err = errors.New("db down")

	summary, err := svc.KPISummary(context.Background(), businessID, "today")
	if err != nil {
		t.Fatalf("stale fallback: %v", err)
	}
	if summary.Total != 7 {
		t.Fatalf("expected stale totals, got %+v", summary)
	}

	// stale copy expires too: the error finally surfaces
	mr.FastForward(10 * time.Minute)
	if _, err := svc.KPISummary(context.Background(), businessID, "today"); err == nil {
		t.Fatalf("expected error once stale copy expired")
	}
}

func TestDashboardAssemblesAllSections(t *testing.T) {
	repo := &stubRepo{
		rollups:   []DailyRollup{{Date: "2025-02-28", Total: 2, Completed: 2}},
		firstTime: 4,
		repeat:    []RepeatCaller{{Phone: "+61411111111", Calls: 3}},
		reasons:   []ReasonCount{{Reason: "user_hangup", Count: 2}},
	}
	svc := NewService(repo, newTestCache(t), nil, 20)
	svc.now = fixedNow

	ds, err := svc.Dashboard(context.Background(), uuid.New(), "30d")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if ds.Summary.Total != 2 || ds.FirstTimeCallers != 4 || len(ds.RepeatCallers) != 1 || len(ds.Reasons) != 1 {
		t.Fatalf("unexpected dataset: %+v", ds)
	}
}

func TestDashboardDegradesPerSection(t *testing.T) {
	repo := &stubRepo{rollups: []DailyRollup{{Date: "2025-02-28", Total: 2, Completed: 2}}}
	svc := NewService(repo, newTestCache(t), nil, 20)
	svc.now = fixedNow
	businessID := uuid.New()

	// prime the summary cache, then break the repo: the dashboard should
	// still answer with the cached summary and empty secondary sections
	if _, err := svc.KPISummary(context.Background(), businessID, "30d"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	repo.err = errors.New("db down")

	ds, err := svc.Dashboard(context.Background(), businessID, "30d")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if ds.Summary.Total != 2 {
		t.Fatalf("expected cached summary, got %+v", ds.Summary)
	}
	if len(ds.Daily) != 0 || ds.FirstTimeCallers != 0 || len(ds.RepeatCallers) != 0 || len(ds.Reasons) != 0 {
		t.Fatalf("expected empty degraded sections, got %+v", ds)
	}
}
