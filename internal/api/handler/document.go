package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openmargin/margin/internal/api/middleware"
	"github.com/openmargin/margin/internal/api/response"
	"github.com/openmargin/margin/internal/domain"
	"github.com/openmargin/margin/internal/service"
)

// DocumentHandler handles document registry endpoints
type DocumentHandler struct {
	documentService *service.DocumentService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documentService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Create registers a new document
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input domain.DocumentCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		if messages, ok := validationMessages(err); ok {
			response.BadRequest(w, messages)
			return
		}
		response.BadRequest(w, err.Error())
		return
	}

	doc, err := h.documentService.Create(r.Context(), userID, input)
	if err != nil {
		response.InternalError(w, "failed to create document")
		return
	}

	response.Created(w, doc)
}

// List returns the user's documents
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, offset := pagination(r, 50)

	docs, err := h.documentService.List(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w, "failed to list documents")
		return
	}

	response.OK(w, docs)
}

// Get returns a single document
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		response.BadRequest(w, "invalid document ID")
		return
	}

	doc, err := h.documentService.Get(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to get document")
		return
	}

	response.OK(w, doc)
}

// Delete removes a document
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		response.BadRequest(w, "invalid document ID")
		return
	}

	if err := h.documentService.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to delete document")
		return
	}

	response.NoContent(w)
}
