package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubAnalytics struct {
	ok      bool
	payload string
}

func (s stubAnalytics) Shipments(context.Context) (bool, string) {
	return s.ok, s.payload
}

func TestAnalyticsHandler_Shipments(t *testing.T) {
	tests := []struct {
		name       string
		analytics  stubAnalytics
		wantStatus int
	}{
		{
			name:       "rows",
			analytics:  stubAnalytics{ok: true, payload: `{"columns":["shipment_date","cost"],"data":[["2024-01-02",12.5]]}`},
			wantStatus: http.StatusOK,
		},
		{
			name:       "database error",
			analytics:  stubAnalytics{ok: false, payload: `{"error":"Database execution error: connection refused"}`},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			NewAnalyticsHandler(tt.analytics, zap.NewNop()).RegisterRoutes(mux)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/shipments", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.analytics.payload, rec.Body.String())
		})
	}
}
