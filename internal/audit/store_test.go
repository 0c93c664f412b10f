package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/callboardhq/callboard/pkg/logging"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return &Store{pool: mock, log: logging.Default(), now: func() time.Time {
		return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	}}, mock
}

func TestRecord(t *testing.T) {
	store, mock := newMockStore(t)
	callID := "call_1"
	businessID := uuid.New()
	payload := []byte(`{"event":"call_started","call":{"call_id":"call_1"}}`)

	mock.ExpectExec("INSERT INTO call_events").
		WithArgs(&callID, &businessID, "call_started", payload, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store.Record(context.Background(), &callID, &businessID, "call_started", payload)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordUnparseableDelivery(t *testing.T) {
	store, mock := newMockStore(t)
	payload := []byte(`{"event":"call_started"}`)

	mock.ExpectExec("INSERT INTO call_events").
		WithArgs((*string)(nil), (*uuid.UUID)(nil), "call_started", payload, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store.Record(context.Background(), nil, nil, "call_started", payload)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordSwallowsWriteFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO call_events").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "call_started", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(context.DeadlineExceeded)

	// must not panic or escalate
	store.Record(context.Background(), nil, nil, "call_started", []byte(`{}`))
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListForCall(t *testing.T) {
	store, mock := newMockStore(t)
	callID := "call_1"
	businessID := uuid.New()
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, call_id, business_id, event_type, data, occurred_at").
		WithArgs("call_1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "call_id", "business_id", "event_type", "data", "occurred_at"}).
			AddRow(uuid.New(), &callID, &businessID, "call_started", []byte(`{}`), at).
			AddRow(uuid.New(), &callID, &businessID, "call_ended", []byte(`{}`), at.Add(2*time.Minute)))

	events, err := store.ListForCall(context.Background(), "call_1")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != "call_started" || events[1].EventType != "call_ended" {
		t.Fatalf("unexpected event order: %+v", events)
	}
}
