package domain

// ContextOptions tunes context behavior for a single chat turn
type ContextOptions struct {
	// EnableContextUpdates gates post-turn extraction; defaults to on.
	EnableContextUpdates *bool    `json:"enable_context_updates,omitempty"`
	DocumentIDs          []string `json:"document_ids,omitempty"`
}

// ContextUpdatesEnabled reports whether extraction should run after
// this turn. Absent means enabled.
func (o ContextOptions) ContextUpdatesEnabled() bool {
	return o.EnableContextUpdates == nil || *o.EnableContextUpdates
}

// ChatRequest is one user turn submitted to the streaming endpoint.
// Model, temperature, and max tokens fall back to the routed model's
// configured defaults when absent.
type ChatRequest struct {
	Content        string         `json:"content" validate:"required,max=32000"`
	Model          string         `json:"model,omitempty" validate:"omitempty,max=100"`
	Temperature    *float64       `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens      *int           `json:"max_tokens,omitempty" validate:"omitempty,gt=0,lte=128000"`
	ContextOptions ContextOptions `json:"context_options"`
}
