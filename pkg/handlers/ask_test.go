package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/apperrors"
	"github.com/xkhani/shipping-agent/pkg/services"
)

type stubAsker struct {
	answer *services.Answer
	err    error
	got    []string
}

func (s *stubAsker) Ask(_ context.Context, question string) (*services.Answer, error) {
	s.got = append(s.got, question)
	if s.err != nil {
		return nil, s.err
	}
	if s.answer != nil {
		return s.answer, nil
	}
	if strings.TrimSpace(question) == "" {
		return nil, apperrors.ErrMissingQuestion
	}
	return &services.Answer{Question: strings.TrimSpace(question), Response: "answer to " + strings.TrimSpace(question)}, nil
}

func newAskMux(asker Asker) *http.ServeMux {
	mux := http.NewServeMux()
	NewAskHandler(asker, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestAskHandler_Ask(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "answers question",
			body:       `{"question":"  How many shipments are pending?  "}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"question":"How many shipments are pending?","response":"answer to How many shipments are pending?"}`,
		},
		{
			name:       "missing question",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Missing question"}`,
		},
		{
			name:       "blank question",
			body:       `{"question":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Missing question"}`,
		},
		{
			name:       "malformed body",
			body:       `{"question":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid JSON body"}`,
		},
		{
			name:       "internal failure",
			body:       `{"question":"How many orders?"}`,
			err:        errors.New("agent crashed"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"agent crashed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newAskMux(&stubAsker{err: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestAskHandler_FailureTextIsStillOK(t *testing.T) {
	asker := &stubAsker{answer: &services.Answer{
		Question: "Which cities?",
		Response: "I couldn't reach the language model to write a query. Please try again later.",
	}}
	mux := newAskMux(asker)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"Which cities?"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, asker.answer.Response, body.Response)
}

func TestAskHandler_MethodNotAllowed(t *testing.T) {
	mux := newAskMux(&stubAsker{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ask", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAskHandler_Index(t *testing.T) {
	mux := newAskMux(&stubAsker{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"Shipping Agent API is running."}`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
