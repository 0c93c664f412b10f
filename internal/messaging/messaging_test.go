package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/callboardhq/callboard/pkg/logging"
)

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{" +1 (555) 123-4567 ", "+15551234567"},
		{"0411 111 111", "+0411111111"},
		{"+61411111111", "+61411111111"},
		{"", ""},
		{"no digits", ""},
	}
	for _, tt := range tests {
		if got := NormalizeE164(tt.in); got != tt.want {
			t.Fatalf("NormalizeE164(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTwilioSend(t *testing.T) {
	var gotTo, gotFrom, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "AC123" || pass != "token" {
			t.Errorf("unexpected basic auth %s:%s", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer srv.Close()

	sender := NewTwilioSender("AC123", "token", "+15550000000", logging.Default())
	sender.baseURL = srv.URL

	res, err := sender.Send(context.Background(), "+61411111111", "Your booking is confirmed")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.MessageID != "SM123" || res.Status != "queued" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gotTo != "+61411111111" || gotFrom != "+15550000000" || gotBody != "Your booking is confirmed" {
		t.Fatalf("unexpected form values: to=%q from=%q body=%q", gotTo, gotFrom, gotBody)
	}
}

func TestTwilioSendClientErrorNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`))
	}))
	defer srv.Close()

	sender := NewTwilioSender("AC123", "token", "+15550000000", logging.Default())
	sender.baseURL = srv.URL

	if _, err := sender.Send(context.Background(), "+0", "hi"); err == nil {
		t.Fatalf("expected send error")
	}
	if calls != 1 {
		t.Fatalf("4xx must not retry, got %d attempts", calls)
	}
}

func TestTwilioSendValidation(t *testing.T) {
	sender := NewTwilioSender("", "", "+15550000000", nil)
	if _, err := sender.Send(context.Background(), "+61411111111", "hi"); err == nil {
		t.Fatalf("expected error with missing credentials")
	}

	sender = NewTwilioSender("AC123", "token", "", nil)
	if _, err := sender.Send(context.Background(), "+61411111111", "hi"); err == nil {
		t.Fatalf("expected error with missing from number")
	}
	if _, err := sender.Send(context.Background(), "", "hi"); err == nil {
		t.Fatalf("expected error with missing to number")
	}
	sender = NewTwilioSender("AC123", "token", "+15550000000", nil)
	if _, err := sender.Send(context.Background(), "+61411111111", "   "); err == nil {
		t.Fatalf("expected error with empty body")
	}
}
