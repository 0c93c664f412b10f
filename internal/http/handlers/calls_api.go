package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/callboardhq/callboard/internal/audit"
	"github.com/callboardhq/callboard/internal/calls"
	"github.com/callboardhq/callboard/internal/interactions"
	"github.com/callboardhq/callboard/pkg/logging"
)

type summaryLister interface {
	ListSummaries(ctx context.Context, businessID uuid.UUID, limit int) ([]calls.Summary, error)
}

type historyReader interface {
	History(ctx context.Context, phone string) ([]interactions.Entry, error)
}

type eventLister interface {
	ListForCall(ctx context.Context, callID string) ([]audit.Event, error)
}

// CallsAPIHandler serves the dashboard's call listing and detail reads.
type CallsAPIHandler struct {
	summaries summaryLister
	history   historyReader
	events    eventLister
	logger    *logging.Logger
}

type CallsAPIConfig struct {
	Summaries summaryLister
	History   historyReader
	Events    eventLister
	Logger    *logging.Logger
}

func NewCallsAPIHandler(cfg CallsAPIConfig) *CallsAPIHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &CallsAPIHandler{
		summaries: cfg.Summaries,
		history:   cfg.History,
		events:    cfg.Events,
		logger:    cfg.Logger,
	}
}

// ListCalls returns the one-row-per-phone listing, newest first.
// GET /api/calls?limit=
func (h *CallsAPIHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "business_id required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	summaries, err := h.summaries.ListSummaries(r.Context(), businessID, limit)
	if err != nil {
		h.logger.Error("call listing failed", "business_id", businessID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "listing unavailable")
		return
	}
	if summaries == nil {
		summaries = []calls.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": summaries})
}

// GetInteractions returns the merged SMS history for one phone number.
// GET /api/interactions/{phone}
func (h *CallsAPIHandler) GetInteractions(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	if phone == "" {
		writeJSONError(w, http.StatusBadRequest, "phone required")
		return
	}
	history, err := h.history.History(r.Context(), phone)
	if err != nil {
		h.logger.Error("interaction history failed", "phone", phone, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": history})
}

// GetCallEvents returns the audited raw deliveries for one call, oldest
// first, for the call-detail triage view.
// GET /api/calls/{callID}/events
func (h *CallsAPIHandler) GetCallEvents(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	if callID == "" {
		writeJSONError(w, http.StatusBadRequest, "call id required")
		return
	}
	events, err := h.events.ListForCall(r.Context(), callID)
	if err != nil {
		h.logger.Error("call event listing failed", "call_id", callID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "events unavailable")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
