package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openmargin/margin/internal/api/middleware"
	"github.com/openmargin/margin/internal/api/response"
	"github.com/openmargin/margin/internal/domain"
	"github.com/openmargin/margin/internal/service"
)

// ContextHandler handles conversation context endpoints
type ContextHandler struct {
	contextService *service.ContextService
}

// NewContextHandler creates a new context handler
func NewContextHandler(contextService *service.ContextService) *ContextHandler {
	return &ContextHandler{contextService: contextService}
}

// Get returns the session's conversation context
func (h *ContextHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id, err := sessionID(r)
	if err != nil {
		response.BadRequest(w, "invalid session ID")
		return
	}

	chatCtx, err := h.contextService.Get(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to get context")
		return
	}

	response.OK(w, chatCtx)
}

// Update applies manual edits to the context
func (h *ContextHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id, err := sessionID(r)
	if err != nil {
		response.BadRequest(w, "invalid session ID")
		return
	}

	var update domain.ContextUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	chatCtx, err := h.contextService.Update(r.Context(), id, userID, update)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to update context")
		return
	}

	response.OK(w, chatCtx)
}

// UpdateTask edits a single task inside the context
func (h *ContextHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id, err := sessionID(r)
	if err != nil {
		response.BadRequest(w, "invalid session ID")
		return
	}

	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		response.BadRequest(w, "missing task ID")
		return
	}

	var update domain.TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(update); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	chatCtx, err := h.contextService.UpdateTask(r.Context(), id, userID, taskID, update)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.NotFound(w, err.Error())
		case errors.Is(err, service.ErrTaskNotFound):
			response.NotFound(w, err.Error())
		default:
			response.InternalError(w, "failed to update task")
		}
		return
	}

	response.OK(w, chatCtx)
}

// RelevantDocuments returns the documents the context references
func (h *ContextHandler) RelevantDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id, err := sessionID(r)
	if err != nil {
		response.BadRequest(w, "invalid session ID")
		return
	}

	docs, err := h.contextService.RelevantDocuments(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to score documents")
		return
	}

	response.OK(w, docs)
}

// Insights returns derived statistics about the context
func (h *ContextHandler) Insights(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id, err := sessionID(r)
	if err != nil {
		response.BadRequest(w, "invalid session ID")
		return
	}

	insights, err := h.contextService.Insights(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to compute insights")
		return
	}

	response.OK(w, insights)
}
