package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the state of an extracted task
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// TaskPriority classifies how urgent an extracted task is
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// Task is an actionable item extracted from conversation text.
// Tasks are embedded in a ChatContext, never stored standalone.
type Task struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	Source      string       `json:"source"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// ChatContext is the incrementally-extracted problem context for a session.
// At most one context exists per session.
type ChatContext struct {
	ID                uuid.UUID `json:"id"`
	SessionID         uuid.UUID `json:"session_id"`
	Summary           string    `json:"summary,omitempty"`
	CurrentGoal       string    `json:"current_goal,omitempty"`
	Tasks             []Task    `json:"tasks"`
	RelevantDocuments []string  `json:"relevant_documents"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ContextUpdate carries explicit (manual) context edits from the API
type ContextUpdate struct {
	Summary           *string  `json:"summary,omitempty"`
	CurrentGoal       *string  `json:"current_goal,omitempty"`
	RelevantDocuments []string `json:"relevant_documents,omitempty"`
}

// TaskUpdate carries explicit task edits; tasks are never deleted,
// only status-transitioned
type TaskUpdate struct {
	Description *string       `json:"description,omitempty" validate:"omitempty,min=1"`
	Status      *TaskStatus   `json:"status,omitempty" validate:"omitempty,oneof=pending completed"`
	Priority    *TaskPriority `json:"priority,omitempty" validate:"omitempty,oneof=high medium low"`
}

// ContextRepository defines the interface for context storage
type ContextRepository interface {
	GetBySession(ctx context.Context, sessionID uuid.UUID) (*ChatContext, error)
	Save(ctx context.Context, chatCtx *ChatContext) error
}
