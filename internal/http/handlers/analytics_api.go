package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/callboardhq/callboard/internal/analytics"
	"github.com/callboardhq/callboard/pkg/logging"
)

type analyticsService interface {
	KPISummary(ctx context.Context, businessID uuid.UUID, period string) (analytics.Summary, error)
	Dashboard(ctx context.Context, businessID uuid.UUID, period string) (analytics.Dataset, error)
}

// AnalyticsHandler serves the dashboard KPI endpoints.
type AnalyticsHandler struct {
	service analyticsService
	logger  *logging.Logger
}

func NewAnalyticsHandler(service analyticsService, logger *logging.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AnalyticsHandler{service: service, logger: logger}
}

// businessFromRequest reads the tenant the dashboard is scoped to, from the
// X-Business-Id header or a business_id query parameter.
func businessFromRequest(r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimSpace(r.Header.Get("X-Business-Id"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("business_id"))
	}
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Handle returns the KPI summary when a period is given, or the full
// dataset (daily series, rankings, reason histogram) when it is not.
// GET /api/analytics?period=today|24h|7d|14d|30d|all
func (h *AnalyticsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromRequest(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "business_id required")
		return
	}

	period := r.URL.Query().Get("period")
	if period != "" {
		summary, err := h.service.KPISummary(r.Context(), businessID, period)
		if err != nil {
			if errors.Is(err, analytics.ErrUnknownPeriod) {
				writeJSONError(w, http.StatusBadRequest, "unknown period")
				return
			}
			h.logger.Error("analytics summary failed", "business_id", businessID, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "analytics unavailable")
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}

	dataset, err := h.service.Dashboard(r.Context(), businessID, "")
	if err != nil {
		h.logger.Error("analytics dashboard failed", "business_id", businessID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "analytics unavailable")
		return
	}
	writeJSON(w, http.StatusOK, dataset)
}
