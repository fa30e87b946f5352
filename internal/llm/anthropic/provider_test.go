package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openmargin/margin/internal/llm"
)

func collect(t *testing.T, ch <-chan llm.Envelope) []llm.Envelope {
	t.Helper()
	var got []llm.Envelope
	for env := range ch {
		got = append(got, env)
	}
	return got
}

func TestStreamCompletionEventSequence(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			`{"type":"message_start","message":{"usage":{"input_tokens":25}}}`,
			`{"type":"content_block_start"}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello"}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":" there"}}`,
			`{"type":"content_block_stop"}`,
			`{"type":"message_delta","usage":{"output_tokens":7}}`,
			`{"type":"message_stop"}`,
		}
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
		}
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL, 5*time.Second)
	got := collect(t, p.StreamCompletion(context.Background(), llm.Request{
		Model: "claude-sonnet-4-5",
		Messages: []llm.Message{
			{Role: "system", Content: "You are terse."},
			{Role: "user", Content: "hi"},
		},
		MaxTokens: 512,
	}))

	// The system turn moved out of the messages array.
	assert.Equal(t, "You are terse.", captured["system"])
	msgs := captured["messages"].([]any)
	assert.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])

	assert.Len(t, got, 3)
	assert.Equal(t, "Hello", got[0].Content)
	assert.Equal(t, " there", got[1].Content)

	terminal := got[2]
	assert.Equal(t, llm.EnvelopeComplete, terminal.Type)
	assert.NotNil(t, terminal.Tokens)
	assert.Equal(t, 32, *terminal.Tokens)

	usage := terminal.Metadata["usage"].(map[string]any)
	assert.Equal(t, 25, usage["input_tokens"])
	assert.Equal(t, 7, usage["output_tokens"])
}

func TestStreamCompletionNoSystemMessage(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL, 5*time.Second)
	collect(t, p.StreamCompletion(context.Background(), llm.Request{
		Model:    "claude-sonnet-4-5",
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	}))

	_, hasSystem := captured["system"]
	assert.False(t, hasSystem)
}

func TestStreamCompletionHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL, 5*time.Second)
	got := collect(t, p.StreamCompletion(context.Background(), llm.Request{Model: "claude-sonnet-4-5"}))

	assert.Len(t, got, 1)
	assert.Equal(t, llm.EnvelopeError, got[0].Type)
}

func TestStreamCompletionTruncatedStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"partial\"}}\n\n")
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL, 5*time.Second)
	got := collect(t, p.StreamCompletion(context.Background(), llm.Request{Model: "claude-sonnet-4-5"}))

	assert.Len(t, got, 2)
	assert.Equal(t, llm.EnvelopeChunk, got[0].Type)
	assert.Equal(t, llm.EnvelopeError, got[1].Type)
}

func TestInitializeNoKey(t *testing.T) {
	p := NewProvider("", "", time.Second)
	err := p.Initialize(context.Background())

	var initErr *llm.ProviderInitError
	assert.ErrorAs(t, err, &initErr)
	assert.Equal(t, "anthropic", initErr.Provider)
}

func TestListModelsStatic(t *testing.T) {
	p := NewProvider("test-key", "", time.Second)
	models := p.ListModels(context.Background())
	assert.NotEmpty(t, models)
	assert.Contains(t, models, "claude-sonnet-4-5")
}
