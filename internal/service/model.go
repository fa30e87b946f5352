package service

import (
	"context"

	"github.com/openmargin/margin/internal/llm"
	"github.com/openmargin/margin/internal/repository/redis"
)

// ModelService exposes the model registry to the API layer
type ModelService struct {
	router *llm.Router
	cache  *redis.ModelCache
}

// NewModelService creates a new model service. cache may be nil when
// redis is disabled.
func NewModelService(router *llm.Router, cache *redis.ModelCache) *ModelService {
	return &ModelService{router: router, cache: cache}
}

// List returns all currently-usable registered models
func (s *ModelService) List() []llm.ModelSummary {
	return s.router.ListAvailable()
}

// DefaultModel returns the model used when a request names none
func (s *ModelService) DefaultModel() string {
	return s.router.DefaultModel()
}

// LiveModels returns the model ids a provider's backend reports,
// cached briefly to keep UI polling off the provider APIs.
func (s *ModelService) LiveModels(ctx context.Context, providerKey string) ([]string, bool) {
	p, ok := s.router.Provider(providerKey)
	if !ok {
		return nil, false
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, providerKey); err == nil && cached != nil {
			return cached, true
		}
	}

	models := p.ListModels(ctx)
	if s.cache != nil && len(models) > 0 {
		// Cache write failures are harmless; the next call refetches.
		_ = s.cache.Set(ctx, providerKey, models)
	}
	return models, true
}
