package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message represents a chat message within a session.
// Messages are immutable once written and ordered by CreatedAt.
type Message struct {
	ID                   uuid.UUID      `json:"id"`
	SessionID            uuid.UUID      `json:"session_id"`
	Role                 MessageRole    `json:"role"`
	Content              string         `json:"content"`
	Tokens               *int           `json:"tokens,omitempty"`
	Model                string         `json:"model,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	DocumentReferences   []string       `json:"document_references,omitempty"`
	AnnotationReferences []string       `json:"annotation_references,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
}

// MessageRepository defines the interface for message storage
type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]Message, error)
}
