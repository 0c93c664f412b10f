package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/callboardhq/callboard/pkg/logging"
)

type tenancyStore interface {
	CreateBusiness(ctx context.Context, name, timezone string) (uuid.UUID, error)
	BusinessExists(ctx context.Context, id uuid.UUID) (bool, error)
	UpsertAgentMapping(ctx context.Context, agentID string, businessID uuid.UUID) error
}

// AdminHandler provisions tenants and their agent mappings. Agent mappings
// are explicit: an unmapped agent id never creates a tenant implicitly.
type AdminHandler struct {
	tenants tenancyStore
	logger  *logging.Logger
}

func NewAdminHandler(tenants tenancyStore, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{tenants: tenants, logger: logger}
}

// CreateBusiness provisions a tenant.
// POST /admin/businesses {"name": "...", "timezone": "..."}
func (h *AdminHandler) CreateBusiness(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Timezone string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "name required")
		return
	}

	id, err := h.tenants.CreateBusiness(r.Context(), strings.TrimSpace(req.Name), req.Timezone)
	if err != nil {
		h.logger.Error("business create failed", "name", req.Name, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "create failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "businessId": id})
}

// MapAgent binds a provider agent id to an existing tenant.
// POST /admin/agents {"agentId": "...", "businessId": "..."}
func (h *AdminHandler) MapAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID    string    `json:"agentId"`
		BusinessID uuid.UUID `json:"businessId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		strings.TrimSpace(req.AgentID) == "" || req.BusinessID == uuid.Nil {
		writeJSONError(w, http.StatusBadRequest, "agentId and businessId required")
		return
	}

	exists, err := h.tenants.BusinessExists(r.Context(), req.BusinessID)
	if err != nil {
		h.logger.Error("business lookup failed", "business_id", req.BusinessID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !exists {
		writeJSONError(w, http.StatusNotFound, "business not found")
		return
	}

	if err := h.tenants.UpsertAgentMapping(r.Context(), strings.TrimSpace(req.AgentID), req.BusinessID); err != nil {
		h.logger.Error("agent mapping failed", "agent_id", req.AgentID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "mapping failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
