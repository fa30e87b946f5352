package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Document represents an uploaded document's registry entry.
// Content extraction and format parsing happen upstream; the chat
// subsystem only needs titles and tags for relevance scoring.
type Document struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Format    string    `json:"format,omitempty"`
	Tags      []string  `json:"tags"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentCreate represents document registration data
type DocumentCreate struct {
	Title  string   `json:"title" validate:"required,max=300"`
	Format string   `json:"format" validate:"omitempty,oneof=html markdown pdf text"`
	Tags   []string `json:"tags" validate:"omitempty,dive,max=50"`
}

// DocumentRepository defines the interface for document storage
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id, userID uuid.UUID) (*Document, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Document, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}
