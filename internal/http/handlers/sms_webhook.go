package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/callboardhq/callboard/internal/messaging"
	observemetrics "github.com/callboardhq/callboard/internal/observability/metrics"
	"github.com/callboardhq/callboard/internal/tenancy"
	"github.com/callboardhq/callboard/pkg/logging"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type interactionRecorder interface {
	RecordInbound(ctx context.Context, businessID uuid.UUID, phone, message string) error
	RecordOutbound(ctx context.Context, businessID uuid.UUID, phone, message string) error
}

// SMSWebhookHandler receives inbound SMS notifications from Twilio as
// form-encoded posts and appends them to the per-phone interaction log.
type SMSWebhookHandler struct {
	interactions interactionRecorder
	resolver     tenantResolver
	logger       *logging.Logger
	metrics      *observemetrics.WebhookMetrics
}

type SMSWebhookConfig struct {
	Interactions interactionRecorder
	Resolver     tenantResolver
	Logger       *logging.Logger
	Metrics      *observemetrics.WebhookMetrics
}

func NewSMSWebhookHandler(cfg SMSWebhookConfig) *SMSWebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &SMSWebhookHandler{
		interactions: cfg.Interactions,
		resolver:     cfg.Resolver,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}
}

// Handle records the inbound message and replies with empty TwiML so Twilio
// sends no automatic response. A missing From is the one rejected input.
func (h *SMSWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.ObserveLatency("sms", time.Since(start).Seconds())
	}()

	if err := r.ParseForm(); err != nil {
		h.metrics.ObserveReceived("sms", "sms_inbound", "malformed")
		writeJSONError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	from := messaging.NormalizeE164(r.PostFormValue("From"))
	body := r.PostFormValue("Body")

	if from == "" {
		h.logger.Warn("inbound sms missing From")
		h.metrics.ObserveReceived("sms", "sms_inbound", "missing_from")
		writeJSONError(w, http.StatusBadRequest, "missing From")
		return
	}

	// Inbound texts carry no agent hint; outside production the dev
	// fallback applies, otherwise the entry is recorded without a tenant.
	businessID, err := h.resolver.Resolve(r.Context(), "", "")
	if err != nil && !errors.Is(err, tenancy.ErrUnresolved) {
		h.logger.Error("sms tenant resolution failed", "error", err)
	}

	if err := h.interactions.RecordInbound(r.Context(), businessID, from, body); err != nil {
		// acknowledged anyway; Twilio must not retry-storm over a db blip
		h.logger.Error("inbound sms append failed", "phone", from, "error", err)
		h.metrics.ObserveReceived("sms", "sms_inbound", "append_error")
	} else {
		h.metrics.ObserveReceived("sms", "sms_inbound", "ok")
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
