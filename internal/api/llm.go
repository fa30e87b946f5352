package api

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/openmargin/margin/internal/config"
	"github.com/openmargin/margin/internal/llm"
	"github.com/openmargin/margin/internal/llm/anthropic"
	"github.com/openmargin/margin/internal/llm/custom"
	"github.com/openmargin/margin/internal/llm/openai"
)

// NewLLMRouter builds the model router from configuration. Providers
// without a credential are still registered; the router reports them
// unusable until one appears, unless the provider is marked trusted.
func NewLLMRouter(cfg config.LLMConfig) *llm.Router {
	router := llm.NewRouter(cfg.DefaultModel)

	keys := make([]string, 0, len(cfg.Providers))
	for key := range cfg.Providers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		pc := cfg.Providers[key]

		var provider llm.Provider
		switch pc.Type {
		case "openai":
			provider = openai.NewProvider(pc.APIKey(), pc.BaseURL, pc.MaxTokensParam, cfg.DefaultTimeout)
		case "anthropic":
			provider = anthropic.NewProvider(pc.APIKey(), pc.BaseURL, cfg.DefaultTimeout)
		case "custom":
			provider = custom.NewProvider(key, pc.APIKey(), pc.BaseURL, cfg.DefaultTimeout)
		default:
			log.Warn().Str("provider", key).Str("type", pc.Type).Msg("unknown provider type, skipping")
			continue
		}

		log.Info().Str("provider", key).Str("type", pc.Type).Bool("trusted", pc.Trusted).Msg("registering LLM provider")
		router.RegisterProvider(key, provider, pc.Trusted)
	}

	registered := make(map[string]bool, len(cfg.Models))
	registerModel := func(id string) {
		mc, ok := cfg.Models[id]
		if !ok || registered[id] {
			return
		}
		registered[id] = true

		technical := mc.TechnicalName
		if technical == "" {
			technical = id
		}
		router.RegisterModel(id, llm.ModelConfig{
			TechnicalName:      technical,
			CommonName:         mc.CommonName,
			Provider:           mc.Provider,
			DefaultTemperature: mc.DefaultTemperature,
			DefaultMaxTokens:   mc.DefaultMaxTokens,
		})
	}

	// model_order drives listing order; any models left out of it are
	// appended alphabetically so registration stays deterministic.
	for _, id := range cfg.ModelOrder {
		registerModel(id)
	}
	rest := make([]string, 0, len(cfg.Models))
	for id := range cfg.Models {
		if !registered[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		registerModel(id)
	}

	return router
}
