package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a chat session
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
)

// ChatSession represents a conversation thread owned by a single user
type ChatSession struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	Title        string         `json:"title"`
	Status       SessionStatus  `json:"status"`
	LastMessage  string         `json:"last_message,omitempty"`
	MessageCount int            `json:"message_count"`
	TotalTokens  int            `json:"total_tokens"`
	Settings     map[string]any `json:"settings,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SessionUpdate carries the mutable session fields for explicit edits
type SessionUpdate struct {
	Title  *string        `json:"title,omitempty" validate:"omitempty,max=200"`
	Status *SessionStatus `json:"status,omitempty" validate:"omitempty,oneof=active archived"`
}

// SessionRepository defines the interface for session storage.
// All lookups are owner-scoped; implementations must not return
// sessions belonging to another user.
type SessionRepository interface {
	Create(ctx context.Context, session *ChatSession) error
	Get(ctx context.Context, id, userID uuid.UUID) (*ChatSession, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status SessionStatus, limit, offset int) ([]ChatSession, error)
	Update(ctx context.Context, session *ChatSession) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}
