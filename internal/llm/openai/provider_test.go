package openai

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

func sseServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"data":[{"id":"gpt-4o"},{"id":"o4-mini"},{"id":"whisper-1"}]}`)
			return
		}

		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, true, payload["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
		}
	}))
}

func collect(t *testing.T, ch <-chan llm.Envelope) []llm.Envelope {
	t.Helper()
	var got []llm.Envelope
	for env := range ch {
		got = append(got, env)
	}
	return got
}

func TestStreamCompletionChunksAndComplete(t *testing.T) {
	server := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"Hello"},"finish_reason":null}]}`,
		`{"choices":[{"delta":{"content":" world"},"finish_reason":null}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`,
	})
	defer server.Close()

	p := NewProvider("test-key", server.URL, "max_tokens", 5*time.Second)
	got := collect(t, p.StreamCompletion(context.Background(), llm.Request{
		Model:    "gpt-4o",
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	}))

	assert.Len(t, got, 3)
	assert.Equal(t, llm.EnvelopeChunk, got[0].Type)
	assert.Equal(t, "Hello", got[0].Content)
	assert.Equal(t, " world", got[1].Content)

	terminal := got[2]
	assert.Equal(t, llm.EnvelopeComplete, terminal.Type)
	assert.NotNil(t, terminal.Tokens)
	assert.Equal(t, 12, *terminal.Tokens)
	assert.Equal(t, "stop", terminal.Metadata["finish_reason"])
}

func TestStreamCompletionDoneSentinel(t *testing.T) {
	// Some OpenAI-compatible deployments send [DONE] with no
	// finish_reason frame; the sentinel still terminates cleanly.
	server := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"hi"},"finish_reason":null}]}`,
		`[DONE]`,
	})
	defer server.Close()

	p := NewProvider("test-key", server.URL, "max_tokens", 5*time.Second)
	got := collect(t, p.StreamCompletion(context.Background(), llm.Request{Model: "gpt-4o"}))

	assert.Len(t, got, 2)
	assert.Equal(t, llm.EnvelopeComplete, got[1].Type)
}

func TestStreamCompletionMalformedFramesSkipped(t *testing.T) {
	server := sseServer(t, []string{
		`{not json`,
		`{"choices":[{"delta":{"content":"ok"},"finish_reason":null}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	})
	defer server.Close()

	p := NewProvider("test-key", server.URL, "max_tokens", 5*time.Second)
	got := collect(t, p.StreamCompletion(context.Background(), llm.Request{Model: "gpt-4o"}))

	assert.Len(t, got, 2)
	assert.Equal(t, "ok", got[0].Content)
	assert.Equal(t, llm.EnvelopeComplete, got[1].Type)
}

func TestStreamCompletionHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL, "max_tokens", 5*time.Second)
	got := collect(t, p.StreamCompletion(context.Background(), llm.Request{Model: "gpt-4o"}))

	assert.Len(t, got, 1)
	assert.Equal(t, llm.EnvelopeError, got[0].Type)
	assert.Contains(t, got[0].Error, "429")
}

func TestStreamCompletionTruncatedStream(t *testing.T) {
	// Connection closes mid-stream without a terminal frame.
	server := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"partial"},"finish_reason":null}]}`,
	})
	defer server.Close()

	p := NewProvider("test-key", server.URL, "max_tokens", 5*time.Second)
	got := collect(t, p.StreamCompletion(context.Background(), llm.Request{Model: "gpt-4o"}))

	assert.Len(t, got, 2)
	assert.Equal(t, llm.EnvelopeChunk, got[0].Type)
	assert.Equal(t, llm.EnvelopeError, got[1].Type)
}

func TestStreamCompletionContextCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"},\"finish_reason\":null}]}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	p := NewProvider("test-key", server.URL, "max_tokens", 5*time.Second)
	ch := p.StreamCompletion(ctx, llm.Request{Model: "gpt-4o"})

	env, ok := <-ch
	assert.True(t, ok)
	assert.Equal(t, "a", env.Content)

	cancel()

	// The producer stops; the channel closes without hanging.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("producer did not stop after cancellation")
		}
	}
}

func TestInitializeNoKey(t *testing.T) {
	p := NewProvider("", "http://localhost:9", "max_tokens", time.Second)
	err := p.Initialize(context.Background())

	var initErr *llm.ProviderInitError
	assert.ErrorAs(t, err, &initErr)
	assert.Equal(t, "openai", initErr.Provider)
	assert.False(t, p.Configured())
}

func TestListModelsLiveAndFallback(t *testing.T) {
	server := sseServer(t, nil)
	defer server.Close()

	p := NewProvider("test-key", server.URL, "max_tokens", 5*time.Second)
	models := p.ListModels(context.Background())
	// Live ids pass through without a name filter.
	assert.Equal(t, []string{"gpt-4o", "o4-mini", "whisper-1"}, models)

	server.Close()
	models = p.ListModels(context.Background())
	assert.Contains(t, models, "gpt-4o-mini")
	assert.NotEmpty(t, models)
}

func TestCustomMaxTokensParam(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL, "max_completion_tokens", 5*time.Second)
	collect(t, p.StreamCompletion(context.Background(), llm.Request{Model: "o4-mini", MaxTokens: 256}))

	assert.Equal(t, float64(256), captured["max_completion_tokens"])
	assert.NotContains(t, captured, "max_tokens")
}
