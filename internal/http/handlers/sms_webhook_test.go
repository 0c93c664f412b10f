package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/callboardhq/callboard/internal/tenancy"
)

type recordedMessage struct {
	businessID uuid.UUID
	phone      string
	message    string
	direction  string
}

type stubInteractions struct {
	recorded []recordedMessage
	err      error
}

func (s *stubInteractions) RecordInbound(_ context.Context, businessID uuid.UUID, phone, message string) error {
	if s.err != nil {
		return s.err
	}
	s.recorded = append(s.recorded, recordedMessage{businessID, phone, message, "inbound"})
	return nil
}

func (s *stubInteractions) RecordOutbound(_ context.Context, businessID uuid.UUID, phone, message string) error {
	if s.err != nil {
		return s.err
	}
	s.recorded = append(s.recorded, recordedMessage{businessID, phone, message, "outbound"})
	return nil
}

func postSMSForm(t *testing.T, h *SMSWebhookHandler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestSMSWebhookRecordsInbound(t *testing.T) {
	businessID := uuid.New()
	recorder := &stubInteractions{}
	h := NewSMSWebhookHandler(SMSWebhookConfig{
		Interactions: recorder,
		Resolver:     &stubResolver{businessID: businessID},
	})

	rec := postSMSForm(t, h, url.Values{
		"From": {"+61 411 111 111"},
		"To":   {"+61399999999"},
		"Body": {"yes please"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" {
		t.Fatalf("expected text/xml, got %q", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "<Response></Response>") {
		t.Fatalf("expected empty TwiML, got %q", body)
	}
	if len(recorder.recorded) != 1 {
		t.Fatalf("expected one recorded message, got %d", len(recorder.recorded))
	}
	got := recorder.recorded[0]
	if got.phone != "+61411111111" || got.message != "yes please" || got.direction != "inbound" || got.businessID != businessID {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestSMSWebhookMissingFrom(t *testing.T) {
	recorder := &stubInteractions{}
	h := NewSMSWebhookHandler(SMSWebhookConfig{
		Interactions: recorder,
		Resolver:     &stubResolver{businessID: uuid.New()},
	})

	rec := postSMSForm(t, h, url.Values{"Body": {"hello"}})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "missing From") {
		t.Fatalf("expected missing From error, got %q", rec.Body.String())
	}
	if len(recorder.recorded) != 0 {
		t.Fatalf("nothing should be recorded without a sender")
	}
}

func TestSMSWebhookUnresolvedTenantStillRecords(t *testing.T) {
	recorder := &stubInteractions{}
	h := NewSMSWebhookHandler(SMSWebhookConfig{
		Interactions: recorder,
		Resolver:     &stubResolver{err: tenancy.ErrUnresolved},
	})

	rec := postSMSForm(t, h, url.Values{"From": {"+61411111111"}, "Body": {"hi"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(recorder.recorded) != 1 || recorder.recorded[0].businessID != uuid.Nil {
		t.Fatalf("expected tenantless record, got %+v", recorder.recorded)
	}
}

func TestSMSWebhookAppendFailureStillAcks(t *testing.T) {
	h := NewSMSWebhookHandler(SMSWebhookConfig{
		Interactions: &stubInteractions{err: errors.New("db down")},
		Resolver:     &stubResolver{businessID: uuid.New()},
	})

	rec := postSMSForm(t, h, url.Values{"From": {"+61411111111"}, "Body": {"hi"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("append failure must not fail the ack, got %d", rec.Code)
	}
}
