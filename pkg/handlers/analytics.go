package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// ShipmentAnalytics runs the dashboard query. *services.Analytics satisfies it.
type ShipmentAnalytics interface {
	Shipments(ctx context.Context) (bool, string)
}

// AnalyticsHandler serves read-only dashboard data.
type AnalyticsHandler struct {
	analytics ShipmentAnalytics
	logger    *zap.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(analytics ShipmentAnalytics, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, logger: logger.Named("analytics")}
}

// RegisterRoutes registers GET /analytics/shipments.
func (h *AnalyticsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /analytics/shipments", h.Shipments)
}

// Shipments handles GET /analytics/shipments. The executor payload is
// returned as is: {"columns","data"} on success, {"error"} with 500 otherwise.
func (h *AnalyticsHandler) Shipments(w http.ResponseWriter, r *http.Request) {
	ok, payload := h.analytics.Shipments(r.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}
	if err := WriteRawJSON(w, status, payload); err != nil {
		h.logger.Error("Failed to write analytics response", zap.Error(err))
	}
}
