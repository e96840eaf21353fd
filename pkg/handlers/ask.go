package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/apperrors"
	"github.com/xkhani/shipping-agent/pkg/services"
)

// RunningStatus is the body of GET /.
const RunningStatus = "Shipping Agent API is running."

// maxAskBodyBytes caps the POST /ask body.
const maxAskBodyBytes = 64 << 10

// Asker answers a question. *services.Agent satisfies it.
type Asker interface {
	Ask(ctx context.Context, question string) (*services.Answer, error)
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the body of a successful POST /ask.
type AskResponse struct {
	Question string `json:"question"`
	Response string `json:"response"`
}

// AskHandler serves the question API.
type AskHandler struct {
	agent  Asker
	logger *zap.Logger
}

// NewAskHandler creates an AskHandler.
func NewAskHandler(agent Asker, logger *zap.Logger) *AskHandler {
	return &AskHandler{agent: agent, logger: logger.Named("ask")}
}

// RegisterRoutes registers POST /ask and GET /.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /ask", h.Ask)
	mux.HandleFunc("GET /{$}", h.Index)
}

// Ask handles POST /ask. Pipeline failures are part of the answer text and
// still return 200; only a missing question or an internal fault does not.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes)).Decode(&req); err != nil {
		h.logger.Debug("Invalid ask body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	answer, err := h.agent.Ask(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, apperrors.ErrMissingQuestion) {
			h.writeError(w, http.StatusBadRequest, "Missing question")
			return
		}
		h.logger.Error("Failed to answer question", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := WriteJSON(w, http.StatusOK, AskResponse{Question: answer.Question, Response: answer.Response}); err != nil {
		h.logger.Error("Failed to encode ask response", zap.Error(err))
	}
}

// Index handles GET /.
func (h *AskHandler) Index(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": RunningStatus}); err != nil {
		h.logger.Error("Failed to encode status response", zap.Error(err))
	}
}

func (h *AskHandler) writeError(w http.ResponseWriter, status int, message string) {
	if err := WriteError(w, status, message); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}
