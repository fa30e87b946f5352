package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubProvider struct {
	name       string
	configured bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Configured() bool { return s.configured }

func (s *stubProvider) Initialize(context.Context) error { return nil }
func (s *stubProvider) StreamCompletion(context.Context, Request) <-chan Envelope {
	out := make(chan Envelope)
	close(out)
	return out
}
func (s *stubProvider) ListModels(context.Context) []string { return nil }

func TestRouterResolve(t *testing.T) {
	router := NewRouter("gpt-4o")
	router.RegisterProvider("openai", &stubProvider{name: "openai", configured: true}, false)
	router.RegisterModel("gpt-4o", ModelConfig{
		TechnicalName: "gpt-4o",
		CommonName:    "GPT-4o",
		Provider:      "openai",
	})

	p, cfg, err := router.Resolve("gpt-4o")
	assert.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "GPT-4o", cfg.CommonName)
}

func TestRouterResolveUnknownModel(t *testing.T) {
	router := NewRouter("gpt-4o")

	_, _, err := router.Resolve("no-such-model")
	assert.True(t, errors.Is(err, ErrModelNotFound))
}

func TestRouterResolveUnconfiguredProvider(t *testing.T) {
	router := NewRouter("claude-sonnet-4-5")
	router.RegisterProvider("anthropic", &stubProvider{name: "anthropic", configured: false}, false)
	router.RegisterModel("claude-sonnet-4-5", ModelConfig{Provider: "anthropic"})

	_, _, err := router.Resolve("claude-sonnet-4-5")
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
}

func TestRouterResolveTrustedProvider(t *testing.T) {
	// A trusted backend needs no credential to be usable.
	router := NewRouter("local-llama")
	router.RegisterProvider("local", &stubProvider{name: "local", configured: false}, true)
	router.RegisterModel("local-llama", ModelConfig{Provider: "local"})

	p, _, err := router.Resolve("local-llama")
	assert.NoError(t, err)
	assert.Equal(t, "local", p.Name())
}

func TestRouterListAvailableOrder(t *testing.T) {
	router := NewRouter("model-b")
	router.RegisterProvider("openai", &stubProvider{name: "openai", configured: true}, false)
	router.RegisterProvider("anthropic", &stubProvider{name: "anthropic", configured: false}, false)

	router.RegisterModel("model-c", ModelConfig{Provider: "openai"})
	router.RegisterModel("model-a", ModelConfig{Provider: "openai"})
	router.RegisterModel("model-b", ModelConfig{Provider: "anthropic"})

	got := router.ListAvailable()
	assert.Len(t, got, 2)
	assert.Equal(t, "model-c", got[0].ID)
	assert.Equal(t, "model-a", got[1].ID)
}

func TestRouterDefaultModelFallback(t *testing.T) {
	router := NewRouter("claude-sonnet-4-5")
	router.RegisterProvider("openai", &stubProvider{name: "openai", configured: true}, false)
	router.RegisterProvider("anthropic", &stubProvider{name: "anthropic", configured: false}, false)

	router.RegisterModel("gpt-4o-mini", ModelConfig{Provider: "openai"})
	router.RegisterModel("gpt-4o", ModelConfig{Provider: "openai"})
	router.RegisterModel("claude-sonnet-4-5", ModelConfig{Provider: "anthropic"})

	// Configured default is unusable; fallback is the first registered
	// usable model, not an arbitrary map iteration.
	assert.Equal(t, "gpt-4o-mini", router.DefaultModel())
}

func TestRouterDefaultModelNoneUsable(t *testing.T) {
	router := NewRouter("gpt-4o")
	router.RegisterProvider("openai", &stubProvider{name: "openai", configured: false}, false)
	router.RegisterModel("gpt-4o", ModelConfig{Provider: "openai"})

	assert.Equal(t, "", router.DefaultModel())
}

func TestEnvelopeTerminal(t *testing.T) {
	assert.False(t, Chunk("hi").Terminal())
	assert.True(t, Complete("done", nil).Terminal())
	assert.True(t, ErrorEnvelope("boom").Terminal())
	assert.False(t, Envelope{Type: EnvelopeContextUpdate}.Terminal())
}
