package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openmargin/margin/internal/llm"
)

const apiVersion = "2023-06-01"

// Provider implements llm.Provider for the Anthropic Messages API.
// The system prompt travels as a dedicated request field, not as a
// message, and streams arrive as typed events rather than deltas.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewProvider creates a new Anthropic provider
func NewProvider(apiKey, baseURL string, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Provider{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "anthropic"
}

// Configured checks if the provider has a credential available
func (p *Provider) Configured() bool {
	return p.apiKey != ""
}

// Initialize validates the credential with a minimal non-streaming call
func (p *Provider) Initialize(ctx context.Context) error {
	if p.apiKey == "" {
		return &llm.ProviderInitError{Provider: p.Name(), Err: fmt.Errorf("API key not provided")}
	}

	body, err := json.Marshal(map[string]any{
		"model":      "claude-3-5-haiku-latest",
		"max_tokens": 1,
		"messages":   []llm.Message{{Role: "user", Content: "ping"}},
	})
	if err != nil {
		return &llm.ProviderInitError{Provider: p.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return &llm.ProviderInitError{Provider: p.Name(), Err: err}
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return &llm.ProviderInitError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &llm.ProviderInitError{Provider: p.Name(), Err: fmt.Errorf("credential rejected with status %d", resp.StatusCode)}
	}
	return nil
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// StreamCompletion streams a chat completion as envelopes
func (p *Provider) StreamCompletion(ctx context.Context, req llm.Request) <-chan llm.Envelope {
	out := make(chan llm.Envelope)

	go func() {
		defer close(out)

		// The Messages API rejects system-role entries in the message
		// array; any leading system message moves to the system field.
		system := ""
		messages := req.Messages
		if len(messages) > 0 && messages[0].Role == "system" {
			system = messages[0].Content
			messages = messages[1:]
		}

		payload := map[string]any{
			"model":       req.Model,
			"messages":    messages,
			"temperature": req.Temperature,
			"max_tokens":  req.MaxTokens,
			"stream":      true,
		}
		if system != "" {
			payload["system"] = system
		}

		body, err := json.Marshal(payload)
		if err != nil {
			emit(ctx, out, llm.ErrorEnvelope("failed to marshal request: "+err.Error()))
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
		if err != nil {
			emit(ctx, out, llm.ErrorEnvelope("failed to create request: "+err.Error()))
			return
		}
		p.setHeaders(httpReq)

		resp, err := p.client.Do(httpReq)
		if err != nil {
			emit(ctx, out, llm.ErrorEnvelope("request failed: "+err.Error()))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			emit(ctx, out, llm.ErrorEnvelope(fmt.Sprintf("anthropic returned status %d", resp.StatusCode)))
			return
		}

		inputTokens := 0
		outputTokens := 0

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}

			switch event.Type {
			case "message_start":
				inputTokens = event.Message.Usage.InputTokens
			case "content_block_delta":
				if event.Delta.Text != "" {
					if !emit(ctx, out, llm.Chunk(event.Delta.Text)) {
						return
					}
				}
			case "message_delta":
				if event.Usage.OutputTokens > 0 {
					outputTokens = event.Usage.OutputTokens
				}
			case "message_stop":
				total := inputTokens + outputTokens
				env := llm.Complete("", map[string]any{
					"model": req.Model,
					"usage": map[string]any{
						"input_tokens":  inputTokens,
						"output_tokens": outputTokens,
						"total_tokens":  total,
					},
				})
				env.Tokens = &total
				emit(ctx, out, env)
				return
			case "error":
				emit(ctx, out, llm.ErrorEnvelope("anthropic stream error"))
				return
			}
		}

		if err := scanner.Err(); err != nil {
			emit(ctx, out, llm.ErrorEnvelope("stream read failed: "+err.Error()))
			return
		}
		emit(ctx, out, llm.ErrorEnvelope("stream ended without completion"))
	}()

	return out
}

// ListModels returns the known Claude model ids. Anthropic has no
// public listing endpoint compatible with this client, so the list is
// static.
func (p *Provider) ListModels(_ context.Context) []string {
	return []string{
		"claude-sonnet-4-5",
		"claude-opus-4-1",
		"claude-3-5-haiku-latest",
	}
}

func emit(ctx context.Context, out chan<- llm.Envelope, env llm.Envelope) bool {
	select {
	case out <- env:
		return true
	case <-ctx.Done():
		return false
	}
}
