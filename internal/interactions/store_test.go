package interactions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return &Store{pool: mock, now: func() time.Time {
		return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	}}, mock
}

func TestRecordOutbound(t *testing.T) {
	store, mock := newMockStore(t)
	businessID := uuid.New()

	mock.ExpectExec("INSERT INTO interactions").
		WithArgs("+61411111111", businessID, []byte(`[{"message":"Your table is booked for 7pm","timestamp":"2025-03-01T10:00:00Z"}]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.RecordOutbound(context.Background(), businessID, "+61411111111", "Your table is booked for 7pm")
	if err != nil {
		t.Fatalf("record outbound: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordInboundSetsRecentReply(t *testing.T) {
	store, mock := newMockStore(t)
	businessID := uuid.New()

	mock.ExpectExec("INSERT INTO interactions").
		WithArgs("+61411111111", businessID, pgxmock.AnyArg(), "yes please").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.RecordInbound(context.Background(), businessID, "+61411111111", "yes please"); err != nil {
		t.Fatalf("record inbound: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordRequiresPhone(t *testing.T) {
	store, _ := newMockStore(t)
	if err := store.RecordOutbound(context.Background(), uuid.New(), "", "hi"); err == nil {
		t.Fatalf("expected error without phone")
	}
	if err := store.RecordInbound(context.Background(), uuid.New(), "", "hi"); err == nil {
		t.Fatalf("expected error without phone")
	}
}

func TestHistoryMergesAndSorts(t *testing.T) {
	store, mock := newMockStore(t)
	outbound := []byte(`[
		{"message":"booking confirmed","timestamp":"2025-03-01T10:00:00Z"},
		{"message":"see you soon","timestamp":"2025-03-01T10:05:00Z"}
	]`)
	inbound := []byte(`[{"message":"thanks!","timestamp":"2025-03-01T10:02:00Z"}]`)

	mock.ExpectQuery("SELECT outbound, inbound FROM interactions").
		WithArgs("+61411111111").
		WillReturnRows(pgxmock.NewRows([]string{"outbound", "inbound"}).AddRow(outbound, inbound))

	history, err := store.History(context.Background(), "+61411111111")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 merged entries, got %d", len(history))
	}
	wantDirections := []string{"outbound", "inbound", "outbound"}
	wantMessages := []string{"booking confirmed", "thanks!", "see you soon"}
	for i, entry := range history {
		if entry.Direction != wantDirections[i] || entry.Message != wantMessages[i] {
			t.Fatalf("entry %d = %+v, want %s %q", i, entry, wantDirections[i], wantMessages[i])
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestHistoryUntrackedPhone(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT outbound, inbound FROM interactions").
		WithArgs("+61400000000").
		WillReturnError(pgx.ErrNoRows)

	history, err := store.History(context.Background(), "+61400000000")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %+v", history)
	}
}

func TestRecentReply(t *testing.T) {
	store, mock := newMockStore(t)
	reply := "yes please"

	mock.ExpectQuery("SELECT recent_reply FROM interactions").
		WithArgs("+61411111111").
		WillReturnRows(pgxmock.NewRows([]string{"recent_reply"}).AddRow(&reply))

	got, err := store.RecentReply(context.Background(), "+61411111111")
	if err != nil {
		t.Fatalf("recent reply: %v", err)
	}
	if got != "yes please" {
		t.Fatalf("recent reply = %q", got)
	}

	mock.ExpectQuery("SELECT recent_reply FROM interactions").
		WithArgs("+61400000000").
		WillReturnError(pgx.ErrNoRows)
	got, err = store.RecentReply(context.Background(), "+61400000000")
	if err != nil || got != "" {
		t.Fatalf("expected empty reply for untracked phone, got %q err=%v", got, err)
	}
}
