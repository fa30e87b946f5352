package llm

// EnvelopeType tags a streaming event
type EnvelopeType string

const (
	EnvelopeChunk         EnvelopeType = "chunk"
	EnvelopeComplete      EnvelopeType = "complete"
	EnvelopeError         EnvelopeType = "error"
	EnvelopeContextUpdate EnvelopeType = "context_update"
)

// Envelope is one discrete event in a model-response stream. A stream
// is an ordered sequence of envelopes terminating in exactly one
// complete or error envelope.
type Envelope struct {
	Type      EnvelopeType   `json:"type"`
	Content   string         `json:"content"`
	MessageID string         `json:"messageId,omitempty"`
	Tokens    *int           `json:"tokens,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Terminal reports whether the envelope ends a stream
func (e Envelope) Terminal() bool {
	return e.Type == EnvelopeComplete || e.Type == EnvelopeError
}

// Chunk builds an incremental content envelope
func Chunk(content string) Envelope {
	return Envelope{Type: EnvelopeChunk, Content: content}
}

// Complete builds a terminal success envelope
func Complete(content string, metadata map[string]any) Envelope {
	return Envelope{Type: EnvelopeComplete, Content: content, Metadata: metadata}
}

// ErrorEnvelope builds a terminal failure envelope
func ErrorEnvelope(message string) Envelope {
	return Envelope{Type: EnvelopeError, Error: message}
}
