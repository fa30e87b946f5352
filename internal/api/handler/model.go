package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openmargin/margin/internal/api/response"
	"github.com/openmargin/margin/internal/service"
)

// ModelHandler handles model registry endpoints
type ModelHandler struct {
	modelService *service.ModelService
}

// NewModelHandler creates a new model handler
func NewModelHandler(modelService *service.ModelService) *ModelHandler {
	return &ModelHandler{modelService: modelService}
}

// List returns all currently-usable models
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{
		"models":        h.modelService.List(),
		"default_model": h.modelService.DefaultModel(),
	})
}

// LiveModels returns the model ids a provider's backend reports
func (h *ModelHandler) LiveModels(w http.ResponseWriter, r *http.Request) {
	providerKey := chi.URLParam(r, "providerKey")

	models, ok := h.modelService.LiveModels(r.Context(), providerKey)
	if !ok {
		response.NotFound(w, "unknown provider")
		return
	}

	response.OK(w, map[string]any{
		"provider": providerKey,
		"models":   models,
	})
}
