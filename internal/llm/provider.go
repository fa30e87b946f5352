package llm

import "context"

// Message is one turn of a conversation sent to a provider.
// Role is one of system, user, assistant; at most one system message
// may appear, and only as the first entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request contains provider-agnostic completion parameters. Model is
// the provider's technical model name, already resolved by the router.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Provider adapts one LLM backend to the streaming envelope protocol.
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// Configured checks if the provider has a credential available
	Configured() bool

	// Initialize validates credentials and connectivity. A failure is
	// fatal for this provider only.
	Initialize(ctx context.Context) error

	// StreamCompletion streams a chat completion as envelopes. The
	// returned channel always terminates with exactly one complete or
	// error envelope and is then closed; transport failures surface as
	// error envelopes, never as panics or leaked errors. Cancelling
	// ctx stops the producer.
	StreamCompletion(ctx context.Context, req Request) <-chan Envelope

	// ListModels returns model ids this backend serves. Implementations
	// fall back to a static list if a live listing call fails.
	ListModels(ctx context.Context) []string
}
