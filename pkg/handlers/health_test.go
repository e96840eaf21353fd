package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/config"
)

type stubTester struct{ err error }

func (s stubTester) TestConnection(context.Context) error { return s.err }

func testConfig() *config.Config {
	cfg := &config.Config{Version: "test-version", Env: "test"}
	cfg.LLM.SQLModel = "deepseek-coder:6.7b-instruct"
	cfg.LLM.GeneralModel = "mistral"
	return cfg
}

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		tester     ConnectionTester
		wantStatus int
		want       HealthResponse
	}{
		{"no datasource probe", nil, http.StatusOK, HealthResponse{Status: "ok"}},
		{"datasource reachable", stubTester{}, http.StatusOK, HealthResponse{Status: "ok", Datasource: "ok"}},
		{
			name:       "datasource down",
			tester:     stubTester{err: errors.New("dial tcp 127.0.0.1:5432: connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			want: HealthResponse{
				Status:     "degraded",
				Datasource: "unreachable",
				Error:      "dial tcp 127.0.0.1:5432: connection refused",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(testConfig(), tt.tester, zap.NewNop())

			rec := httptest.NewRecorder()
			handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got HealthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHealthHandler_Ping(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(testConfig(), nil, zap.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var response PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))

	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "test-version", response.Version)
	assert.Equal(t, "shipping-agent", response.Service)
	assert.Equal(t, "test", response.Environment)
	assert.Equal(t, "mistral", response.GeneralModel)
	assert.NotEmpty(t, response.GoVersion)
}
