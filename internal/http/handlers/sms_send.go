package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/callboardhq/callboard/internal/messaging"
	"github.com/callboardhq/callboard/internal/tenancy"
	"github.com/callboardhq/callboard/pkg/logging"
)

type smsSender interface {
	Send(ctx context.Context, to, body string) (messaging.SendResult, error)
}

// SMSSendHandler lets the dashboard push an outbound SMS to a caller and
// records it in the interaction log.
type SMSSendHandler struct {
	sender       smsSender
	interactions interactionRecorder
	resolver     tenantResolver
	logger       *logging.Logger
}

type SMSSendConfig struct {
	Sender       smsSender
	Interactions interactionRecorder
	Resolver     tenantResolver
	Logger       *logging.Logger
}

func NewSMSSendHandler(cfg SMSSendConfig) *SMSSendHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &SMSSendHandler{
		sender:       cfg.Sender,
		interactions: cfg.Interactions,
		resolver:     cfg.Resolver,
		logger:       cfg.Logger,
	}
}

func (h *SMSSendHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		Message     string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PhoneNumber == "" {
		writeJSONError(w, http.StatusBadRequest, "phoneNumber is required")
		return
	}
	if h.sender == nil {
		writeJSONError(w, http.StatusInternalServerError, "Twilio configuration missing")
		return
	}
	if req.Message == "" {
		req.Message = "hello"
	}
	to := messaging.NormalizeE164(req.PhoneNumber)

	res, err := h.sender.Send(r.Context(), to, req.Message)
	if err != nil {
		h.logger.Error("outbound sms send failed", "to", to, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to send SMS")
		return
	}

	businessID, err := h.resolver.Resolve(r.Context(), "", "")
	if err != nil && !errors.Is(err, tenancy.ErrUnresolved) {
		h.logger.Error("sms tenant resolution failed", "error", err)
	}
	if err := h.interactions.RecordOutbound(r.Context(), businessID, to, req.Message); err != nil {
		h.logger.Error("outbound sms append failed", "phone", to, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "messageSid": res.MessageID})
}
