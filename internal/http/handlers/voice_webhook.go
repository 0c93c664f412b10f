package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/callboardhq/callboard/internal/calls"
	"github.com/callboardhq/callboard/internal/normalize"
	observemetrics "github.com/callboardhq/callboard/internal/observability/metrics"
	"github.com/callboardhq/callboard/internal/tenancy"
	"github.com/callboardhq/callboard/pkg/logging"
)

const maxWebhookBody = 1 << 20

type callUpserter interface {
	Upsert(ctx context.Context, patch calls.Patch) error
}

type auditor interface {
	Record(ctx context.Context, callID *string, businessID *uuid.UUID, eventType string, payload []byte)
}

type tenantResolver interface {
	Resolve(ctx context.Context, businessID, agentID string) (uuid.UUID, error)
}

// VoiceWebhookHandler receives call lifecycle and analysis events from the
// voice provider. The provider retries on non-2xx, so every delivery is
// acknowledged with 200 regardless of what happens downstream; the audit
// trail and logs carry the failures.
type VoiceWebhookHandler struct {
	calls    callUpserter
	audit    auditor
	resolver tenantResolver
	logger   *logging.Logger
	metrics  *observemetrics.WebhookMetrics
}

type VoiceWebhookConfig struct {
	Calls    callUpserter
	Audit    auditor
	Resolver tenantResolver
	Logger   *logging.Logger
	Metrics  *observemetrics.WebhookMetrics
}

func NewVoiceWebhookHandler(cfg VoiceWebhookConfig) *VoiceWebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &VoiceWebhookHandler{
		calls:    cfg.Calls,
		audit:    cfg.Audit,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

func (h *VoiceWebhookHandler) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// Handle processes one delivery. The audit write, the call-state upsert and
// the summary projection are independent failure domains: any of them may
// fail without affecting the others or the response.
func (h *VoiceWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.ObserveLatency("voice", time.Since(start).Seconds())
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("voice webhook body read failed", "error", err)
		h.metrics.ObserveReceived("voice", "unknown", "body_error")
		h.ack(w)
		return
	}

	evt, err := normalize.ParseWebhook(body)
	switch {
	case errors.Is(err, normalize.ErrMissingCallID):
		h.logger.Warn("voice webhook missing call id", "event_type", evt.Type)
		h.audit.Record(r.Context(), nil, nil, evt.Type, body)
		h.metrics.ObserveReceived("voice", evt.Type, "missing_call_id")
		h.ack(w)
		return
	case err != nil:
		h.logger.Warn("voice webhook unparseable payload", "error", err)
		h.audit.Record(r.Context(), nil, nil, "unparseable", body)
		h.metrics.ObserveReceived("voice", "unknown", "malformed")
		h.ack(w)
		return
	}

	businessID, err := h.resolver.Resolve(r.Context(), evt.BusinessID, evt.AgentID)
	if err != nil {
		if errors.Is(err, tenancy.ErrUnresolved) {
			h.logger.Warn("voice webhook tenant unresolved", "call_id", evt.CallID, "agent_id", evt.AgentID)
			h.metrics.ObserveUnresolvedTenant()
		} else {
			h.logger.Error("tenant resolution failed", "call_id", evt.CallID, "error", err)
		}
		// audited for triage, but no call record without a tenant
		h.audit.Record(r.Context(), &evt.CallID, nil, evt.Type, body)
		h.metrics.ObserveReceived("voice", evt.Type, "unresolved")
		h.ack(w)
		return
	}

	h.audit.Record(r.Context(), &evt.CallID, &businessID, evt.Type, body)

	patch, err := calls.BuildPatch(businessID, evt)
	if err != nil {
		h.logger.Error("voice webhook patch build failed", "call_id", evt.CallID, "error", err)
		h.metrics.ObserveReceived("voice", evt.Type, "patch_error")
		h.ack(w)
		return
	}
	if err := h.calls.Upsert(r.Context(), patch); err != nil {
		h.logger.Error("call upsert failed", "call_id", evt.CallID, "event_type", evt.Type, "error", err)
		h.metrics.ObserveUpsertFailure(evt.Type)
		h.metrics.ObserveReceived("voice", evt.Type, "upsert_error")
		h.ack(w)
		return
	}

	h.metrics.ObserveReceived("voice", evt.Type, "ok")
	h.ack(w)
}
