// Package api provides HTTP handlers for the courier server REST API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	svc    *courier.Courier
	logger courier.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc *courier.Courier, logger courier.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// SendRequest represents a message send request.
type SendRequest struct {
	Type     string          `json:"type"`
	Priority string          `json:"priority"`
	Sender   string          `json:"sender"`
	Receiver string          `json:"receiver"`
	Content  json.RawMessage `json:"content"`
}

// ResolveRequest represents a dead letter resolution request.
type ResolveRequest struct {
	ResolvedBy string `json:"resolvedBy"`
	Note       string `json:"note"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// HandleSend handles POST /api/v1/messages
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}

	if req.Sender == "" || req.Receiver == "" {
		h.respondError(w, http.StatusBadRequest, "sender and receiver are required", "VALIDATION_ERROR")
		return
	}
	if req.Priority == "" {
		req.Priority = string(model.PriorityMedium)
	}

	msg := model.NewMessage(
		model.MessageType(req.Type),
		model.Priority(req.Priority),
		req.Sender,
		req.Receiver,
		req.Content,
	)

	if err := h.svc.SendMessage(r.Context(), msg); err != nil {
		var courierErr *courier.Error
		if errors.As(err, &courierErr) {
			switch courierErr.Code {
			case courier.ErrCodeValidation:
				h.respondError(w, http.StatusBadRequest, courierErr.Message, courierErr.Code)
				return
			case courier.ErrCodeCapacity:
				h.respondError(w, http.StatusServiceUnavailable, courierErr.Message, courierErr.Code)
				return
			}
		}
		h.logger.Errorf("Failed to send message: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to send message", "SEND_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusCreated, map[string]string{"id": msg.ID}, "Message accepted")
}

// HandlePendingMessages handles GET /api/v1/messages/pending
func (h *Handler) HandlePendingMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	msgs, err := h.svc.PendingMessages(r.Context())
	if err != nil {
		h.logger.Errorf("Failed to list pending messages: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to list pending messages", "LIST_ERROR")
		return
	}
	if msgs == nil {
		msgs = []model.StoredMessage{}
	}

	h.respondSuccess(w, http.StatusOK, msgs, "")
}

// HandleDeadLetters handles GET /api/v1/deadletters
func (h *Handler) HandleDeadLetters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	if r.URL.Query().Get("stats") == "true" {
		h.respondSuccess(w, http.StatusOK, h.svc.DeadLetterStats(), "")
		return
	}

	h.respondSuccess(w, http.StatusOK, h.svc.DeadLetters(), "")
}

// HandleResolveDeadLetter handles POST /api/v1/deadletters/:id/resolve
func (h *Handler) HandleResolveDeadLetter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	// Path shape: /api/v1/deadletters/:id/resolve
	parts := splitPath(r.URL.Path)
	if len(parts) < 5 || parts[4] != "resolve" {
		h.respondError(w, http.StatusBadRequest, "Invalid dead letter path", "INVALID_ID")
		return
	}
	messageID := parts[3]

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}
	if req.ResolvedBy == "" {
		h.respondError(w, http.StatusBadRequest, "resolvedBy is required", "VALIDATION_ERROR")
		return
	}

	if !h.svc.ResolveDeadLetter(messageID, req.ResolvedBy, req.Note) {
		h.respondError(w, http.StatusNotFound, "Dead letter not found", "NOT_FOUND")
		return
	}

	h.respondSuccess(w, http.StatusOK, nil, "Dead letter resolved")
}

// HandleMetrics handles GET /api/v1/metrics
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	metrics := map[string]interface{}{
		"queue":       h.svc.Metrics(),
		"queueLength": h.svc.QueueLen(),
		"online":      h.svc.Online(),
		"deadLetters": h.svc.DeadLetterStats(),
	}

	h.respondSuccess(w, http.StatusOK, metrics, "")
}

// HandleConnectivity handles POST /api/v1/connectivity/online and
// POST /api/v1/connectivity/offline, the hooks for an external
// connectivity oracle.
func (h *Handler) HandleConnectivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 4 {
		h.respondError(w, http.StatusBadRequest, "Invalid connectivity path", "INVALID_PATH")
		return
	}

	switch parts[3] {
	case "online":
		if err := h.svc.HandleOnline(r.Context()); err != nil {
			h.logger.Errorf("Failed to handle online event: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to handle online event", "CONNECTIVITY_ERROR")
			return
		}
		h.respondSuccess(w, http.StatusOK, nil, "Connectivity set to online")
	case "offline":
		if err := h.svc.HandleOffline(r.Context()); err != nil {
			h.logger.Errorf("Failed to handle offline event: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to handle offline event", "CONNECTIVITY_ERROR")
			return
		}
		h.respondSuccess(w, http.StatusOK, nil, "Connectivity set to offline")
	default:
		h.respondError(w, http.StatusBadRequest, "Unknown connectivity event", "INVALID_PATH")
	}
}

// HandleHealth handles GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"online":    h.svc.Online(),
		"timestamp": time.Now().UTC(),
		"version":   "0.1.0",
	}

	h.respondSuccess(w, http.StatusOK, health, "")
}

// respondError sends an error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Code:    code,
		Message: message,
	})
}

// respondSuccess sends a success response.
func (h *Handler) respondSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// splitPath splits a URL path into non-empty segments.
func splitPath(path string) []string {
	parts := []string{}
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
