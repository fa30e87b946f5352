package openai

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

// Provider implements llm.Provider for OpenAI-style backends:
// message array in the body, delta-based stream frames, a non-null
// finish_reason signalling completion.
type Provider struct {
	apiKey         string
	baseURL        string
	maxTokensParam string
	client         *http.Client
}

// NewProvider creates a new OpenAI-style provider
func NewProvider(apiKey, baseURL, maxTokensParam string, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if maxTokensParam == "" {
		maxTokensParam = "max_tokens"
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Provider{
		apiKey:         apiKey,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		maxTokensParam: maxTokensParam,
		client:         &http.Client{Timeout: timeout},
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "openai"
}

// Configured checks if the provider has a credential available
func (p *Provider) Configured() bool {
	return p.apiKey != ""
}

// Initialize validates the credential against the live models endpoint
func (p *Provider) Initialize(ctx context.Context) error {
	if p.apiKey == "" {
		return &llm.ProviderInitError{Provider: p.Name(), Err: fmt.Errorf("API key not provided")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return &llm.ProviderInitError{Provider: p.Name(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return &llm.ProviderInitError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &llm.ProviderInitError{Provider: p.Name(), Err: fmt.Errorf("models probe returned status %d", resp.StatusCode)}
	}
	return nil
}

type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// StreamCompletion streams a chat completion as envelopes
func (p *Provider) StreamCompletion(ctx context.Context, req llm.Request) <-chan llm.Envelope {
	out := make(chan llm.Envelope)

	go func() {
		defer close(out)

		// The max-tokens parameter name varies across deployments, so
		// the payload is built as a map rather than a fixed struct.
		payload := map[string]any{
			"model":       req.Model,
			"messages":    req.Messages,
			"temperature": req.Temperature,
			"stream":      true,
		}
		payload[p.maxTokensParam] = req.MaxTokens

		body, err := json.Marshal(payload)
		if err != nil {
			emit(ctx, out, llm.ErrorEnvelope("failed to marshal request: "+err.Error()))
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			emit(ctx, out, llm.ErrorEnvelope("failed to create request: "+err.Error()))
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.client.Do(httpReq)
		if err != nil {
			emit(ctx, out, llm.ErrorEnvelope("request failed: "+err.Error()))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			emit(ctx, out, llm.ErrorEnvelope(fmt.Sprintf("openai returned status %d", resp.StatusCode)))
			return
		}

		var usage map[string]any
		var tokens *int

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			if strings.TrimSpace(data) == "[DONE]" {
				emit(ctx, out, completeEnvelope(req.Model, "", usage, tokens))
				return
			}

			var frame streamFrame
			if err := json.Unmarshal([]byte(data), &frame); err != nil {
				continue
			}
			if frame.Usage != nil {
				total := frame.Usage.TotalTokens
				tokens = &total
				usage = map[string]any{
					"prompt_tokens":     frame.Usage.PromptTokens,
					"completion_tokens": frame.Usage.CompletionTokens,
					"total_tokens":      frame.Usage.TotalTokens,
				}
			}
			if len(frame.Choices) == 0 {
				continue
			}

			if content := frame.Choices[0].Delta.Content; content != "" {
				if !emit(ctx, out, llm.Chunk(content)) {
					return
				}
			}
			if reason := frame.Choices[0].FinishReason; reason != nil && *reason != "" {
				emit(ctx, out, completeEnvelope(req.Model, *reason, usage, tokens))
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

// ListModels returns live model ids, falling back to a static list
// when the endpoint cannot be queried. Ids pass through unfiltered;
// o-series and other chat models carry no common prefix, and the
// deployment decides what it exposes.
func (p *Provider) ListModels(ctx context.Context) []string {
	fallback := []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return fallback
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fallback
	}

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fallback
	}

	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return fallback
	}
	return ids
}

func completeEnvelope(model, finishReason string, usage map[string]any, tokens *int) llm.Envelope {
	metadata := map[string]any{"model": model}
	if finishReason != "" {
		metadata["finish_reason"] = finishReason
	}
	if usage != nil {
		metadata["usage"] = usage
	}
	env := llm.Complete("", metadata)
	env.Tokens = tokens
	return env
}

// emit sends an envelope unless the consumer is gone
func emit(ctx context.Context, out chan<- llm.Envelope, env llm.Envelope) bool {
	select {
	case out <- env:
		return true
	case <-ctx.Done():
		return false
	}
}
