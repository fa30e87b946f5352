package custom

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

// Provider implements llm.Provider for operator-hosted backends that
// speak the OpenAI chat-completions dialect (vLLM, llama.cpp server,
// LiteLLM proxies). The base URL is mandatory; the API key is optional
// when the deployment is marked trusted in the router.
type Provider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewProvider creates a provider for a custom endpoint. name becomes
// the provider identifier so multiple custom backends can coexist.
func NewProvider(name, apiKey, baseURL string, timeout time.Duration) *Provider {
	if name == "" {
		name = "custom"
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Provider{
		name:    name,
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return p.name
}

// Configured checks if the provider has a credential available
func (p *Provider) Configured() bool {
	return p.apiKey != ""
}

// Initialize checks that the endpoint is reachable
func (p *Provider) Initialize(ctx context.Context) error {
	if p.baseURL == "" {
		return &llm.ProviderInitError{Provider: p.name, Err: fmt.Errorf("base URL not configured")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return &llm.ProviderInitError{Provider: p.name, Err: err}
	}
	p.setAuth(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return &llm.ProviderInitError{Provider: p.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &llm.ProviderInitError{Provider: p.name, Err: fmt.Errorf("endpoint returned status %d", resp.StatusCode)}
	}
	return nil
}

func (p *Provider) setAuth(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// StreamCompletion streams a chat completion as envelopes. Custom
// backends vary in whether they send a finish_reason, the [DONE]
// sentinel, or both; either one terminates the stream.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.Request) <-chan llm.Envelope {
	out := make(chan llm.Envelope)

	go func() {
		defer close(out)

		payload := map[string]any{
			"model":       req.Model,
			"messages":    req.Messages,
			"temperature": req.Temperature,
			"max_tokens":  req.MaxTokens,
			"stream":      true,
		}

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
		p.setAuth(httpReq)

		resp, err := p.client.Do(httpReq)
		if err != nil {
			emit(ctx, out, llm.ErrorEnvelope("request failed: "+err.Error()))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			emit(ctx, out, llm.ErrorEnvelope(fmt.Sprintf("%s returned status %d", p.name, resp.StatusCode)))
			return
		}

		var tokens *int
		finished := false

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			if strings.TrimSpace(data) == "[DONE]" {
				emit(ctx, out, p.completeEnvelope(req.Model, tokens))
				return
			}

			var frame streamFrame
			if err := json.Unmarshal([]byte(data), &frame); err != nil {
				continue
			}
			if frame.Usage != nil {
				total := frame.Usage.TotalTokens
				tokens = &total
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
				// Some backends follow finish_reason with [DONE];
				// keep reading so the sentinel terminates once.
				finished = true
			}
		}

		if err := scanner.Err(); err != nil {
			emit(ctx, out, llm.ErrorEnvelope("stream read failed: "+err.Error()))
			return
		}
		if finished {
			emit(ctx, out, p.completeEnvelope(req.Model, tokens))
			return
		}
		emit(ctx, out, llm.ErrorEnvelope("stream ended without completion"))
	}()

	return out
}

func (p *Provider) completeEnvelope(model string, tokens *int) llm.Envelope {
	env := llm.Complete("", map[string]any{
		"model":    model,
		"provider": p.name,
	})
	env.Tokens = tokens
	return env
}

// fallbackModels stands in when the endpoint's listing is unreachable.
// A transient listing failure must never leave the caller with zero
// model options; the registry in config still names the real models.
var fallbackModels = []string{"custom-model"}

// ListModels queries the endpoint's model listing; custom backends
// usually expose exactly the models they serve.
func (p *Provider) ListModels(ctx context.Context) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return fallbackModels
	}
	p.setAuth(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fallbackModels
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fallbackModels
	}

	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fallbackModels
	}

	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return fallbackModels
	}
	return ids
}

func emit(ctx context.Context, out chan<- llm.Envelope, env llm.Envelope) bool {
	select {
	case out <- env:
		return true
	case <-ctx.Done():
		return false
	}
}
