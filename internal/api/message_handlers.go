package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/choirlabs/resonance/internal/embedding"
	"github.com/choirlabs/resonance/internal/message"
	"github.com/choirlabs/resonance/internal/middleware"
	"github.com/choirlabs/resonance/internal/service"
	"github.com/choirlabs/resonance/internal/vectorstore"
)

// MaxMessageLength caps the size of a submitted message body.
const MaxMessageLength = 65536

// NewMessageRequest represents the request body for submitting a message.
type NewMessageRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// SearchRequest represents the request body for a similarity search.
type SearchRequest struct {
	Text string `json:"text"`
}

// SearchResponse wraps the ranked messages returned by a search.
type SearchResponse struct {
	Messages []service.SparseMessage `json:"messages"`
}

// MessageHandlers holds dependencies for the message pipeline HTTP handlers.
type MessageHandlers struct {
	svc *service.Service
}

// NewMessageHandlers creates a new MessageHandlers instance.
func NewMessageHandlers(svc *service.Service) *MessageHandlers {
	return &MessageHandlers{svc: svc}
}

// validateText validates a submitted message body.
// Returns error message if validation fails, empty string if valid.
func validateText(text string) string {
	if strings.TrimSpace(text) == "" {
		return "text is required"
	}
	if len(text) > MaxMessageLength {
		return "text must not exceed 65536 bytes"
	}
	return ""
}

// NewMessage handles POST /new_message - stores a submission and returns the
// messages that resonate with it.
func (h *MessageHandlers) NewMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req NewMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}
	if errMsg := validateText(req.Text); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	ctx := middleware.SetUserID(r.Context(), req.UserID)
	result, err := h.svc.NewMessage(ctx, req.UserID, req.Text)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Search handles POST /search - runs the read-only similarity pipeline.
func (h *MessageHandlers) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if errMsg := validateText(req.Text); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	ranked, err := h.svc.Search(r.Context(), req.Text)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Messages: h.svc.ExportMessages(ranked)})
}

// Dashboard handles GET /dashboard/{user_id} - returns a user's voice balance
// and stored messages.
func (h *MessageHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/dashboard/")
	if userID == "" || strings.Contains(userID, "/") {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}

	ctx := middleware.SetUserID(r.Context(), userID)
	result, err := h.svc.Dashboard(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeServiceError maps pipeline errors to API error responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var code, msg string
	switch {
	case errors.Is(err, message.ErrUserNotFound):
		code, msg = ErrCodeNotFound, "User not found"
	case errors.Is(err, embedding.ErrUnavailable):
		code, msg = ErrCodeUnavailable, "Embedding service unavailable"
	case errors.Is(err, vectorstore.ErrUnavailable):
		code, msg = ErrCodeUnavailable, "Vector store unavailable"
	default:
		code, msg = ErrCodeInternal, "Internal server error"
	}

	if code == ErrCodeInternal {
		slog.ErrorContext(r.Context(), "pipeline request failed", "error", err)
	}

	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, StatusCodeMapping(code), code, msg)
}

// writeJSON writes a JSON success response.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
