package llm

import (
	"fmt"
	"sync"
)

// ModelConfig binds a routable model id to a provider
type ModelConfig struct {
	TechnicalName      string
	CommonName         string
	Provider           string
	DefaultTemperature float64
	DefaultMaxTokens   int
}

// ModelSummary describes one usable model for listing endpoints
type ModelSummary struct {
	ID            string `json:"id"`
	TechnicalName string `json:"technical_name"`
	CommonName    string `json:"common_name"`
	Provider      string `json:"provider"`
}

// Router holds the model registry and provider bindings. Registration
// happens once at startup; request-time access is read-only.
type Router struct {
	providers    map[string]Provider
	trusted      map[string]bool
	models       map[string]ModelConfig
	order        []string // model ids in registration order
	defaultModel string
	mu           sync.RWMutex
}

// NewRouter creates a new model router
func NewRouter(defaultModel string) *Router {
	return &Router{
		providers:    make(map[string]Provider),
		trusted:      make(map[string]bool),
		models:       make(map[string]ModelConfig),
		defaultModel: defaultModel,
	}
}

// RegisterProvider binds a provider adapter to a provider key. The
// trusted flag marks deployments that need no per-request credential
// (private-network backends).
func (r *Router) RegisterProvider(key string, p Provider, trusted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[key] = p
	r.trusted[key] = trusted
}

// RegisterModel adds a model to the registry. Registration order is
// preserved for deterministic fallback.
func (r *Router) RegisterModel(id string, cfg ModelConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[id]; !exists {
		r.order = append(r.order, id)
	}
	r.models[id] = cfg
}

// Resolve returns the provider adapter and model config for a model id
func (r *Router) Resolve(modelID string) (Provider, ModelConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.models[modelID]
	if !ok {
		return nil, ModelConfig{}, fmt.Errorf("model %q: %w", modelID, ErrModelNotFound)
	}

	p, ok := r.providers[cfg.Provider]
	if !ok {
		return nil, ModelConfig{}, fmt.Errorf("provider %q for model %q: %w", cfg.Provider, modelID, ErrProviderUnavailable)
	}

	if !p.Configured() && !r.trusted[cfg.Provider] {
		return nil, ModelConfig{}, fmt.Errorf("provider %q for model %q: %w", cfg.Provider, modelID, ErrProviderUnavailable)
	}

	return p, cfg, nil
}

// Provider returns the adapter registered under key
func (r *Router) Provider(key string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[key]
	return p, ok
}

// ListAvailable returns summaries for all models whose provider is
// currently usable, in registration order.
func (r *Router) ListAvailable() []ModelSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := []ModelSummary{}
	for _, id := range r.order {
		cfg := r.models[id]
		if !r.usableLocked(cfg.Provider) {
			continue
		}
		summaries = append(summaries, ModelSummary{
			ID:            id,
			TechnicalName: cfg.TechnicalName,
			CommonName:    cfg.CommonName,
			Provider:      cfg.Provider,
		})
	}
	return summaries
}

// DefaultModel returns the configured default model id if its provider
// is usable, otherwise the first available model in registration order.
// Returns "" when nothing is usable.
func (r *Router) DefaultModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.models[r.defaultModel]; ok && r.usableLocked(cfg.Provider) {
		return r.defaultModel
	}
	for _, id := range r.order {
		if r.usableLocked(r.models[id].Provider) {
			return id
		}
	}
	return ""
}

func (r *Router) usableLocked(providerKey string) bool {
	p, ok := r.providers[providerKey]
	if !ok {
		return false
	}
	return p.Configured() || r.trusted[providerKey]
}
