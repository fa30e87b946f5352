package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openmargin/margin/internal/api/middleware"
	"github.com/openmargin/margin/internal/api/response"
	"github.com/openmargin/margin/internal/domain"
	"github.com/openmargin/margin/internal/service"
)

// SessionHandler handles chat session endpoints
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// pagination reads limit/offset query params with fallbacks
func pagination(r *http.Request, defaultLimit int) (int, int) {
	limit := defaultLimit
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// sessionID parses the session ID from the URL
func sessionID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "sessionID"))
}

// Create creates a new chat session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req struct {
		Title    string         `json:"title" validate:"omitempty,max=200"`
		Settings map[string]any `json:"settings"`
	}
	if r.Body != nil {
		// The body is optional; a bare POST creates an untitled session.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	session, err := h.sessionService.Create(r.Context(), userID, req.Title, req.Settings)
	if err != nil {
		response.InternalError(w, "failed to create session")
		return
	}

	response.Created(w, session)
}

// List returns the user's sessions, optionally filtered by status
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	status := domain.SessionStatus(r.URL.Query().Get("status"))
	if status != "" && status != domain.SessionActive && status != domain.SessionArchived {
		response.BadRequest(w, "invalid status filter")
		return
	}

	limit, offset := pagination(r, 50)

	sessions, err := h.sessionService.List(r.Context(), userID, status, limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list sessions")
		return
	}

	response.OK(w, sessions)
}

// Get returns a single session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	session, err := h.sessionService.Get(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to get session")
		return
	}

	response.OK(w, session)
}

// Update modifies a session's title or status
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var update domain.SessionUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(update); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	session, err := h.sessionService.Update(r.Context(), id, userID, update)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to update session")
		return
	}

	response.OK(w, session)
}

// Archive marks a session as archived
func (h *SessionHandler) Archive(w http.ResponseWriter, r *http.Request) {
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

	session, err := h.sessionService.Archive(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to archive session")
		return
	}

	response.OK(w, session)
}

// Delete removes a session and its messages
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.sessionService.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to delete session")
		return
	}

	response.NoContent(w)
}

// Messages returns the message history of a session
func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
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

	limit, offset := pagination(r, 100)

	messages, err := h.sessionService.Messages(r.Context(), id, userID, limit, offset)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to list messages")
		return
	}

	response.OK(w, messages)
}
