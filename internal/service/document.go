package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openmargin/margin/internal/domain"
)

// DocumentService handles document registry operations
type DocumentService struct {
	documentRepo domain.DocumentRepository
}

// NewDocumentService creates a new document service
func NewDocumentService(documentRepo domain.DocumentRepository) *DocumentService {
	return &DocumentService{documentRepo: documentRepo}
}

// Create registers a document for relevance scoring
func (s *DocumentService) Create(ctx context.Context, userID uuid.UUID, input domain.DocumentCreate) (*domain.Document, error) {
	now := time.Now()
	doc := &domain.Document{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     input.Title,
		Format:    input.Format,
		Tags:      input.Tags,
		Status:    "ready",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.documentRepo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return doc, nil
}

// Get returns one document owned by the user
func (s *DocumentService) Get(ctx context.Context, id, userID uuid.UUID) (*domain.Document, error) {
	doc, err := s.documentRepo.Get(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// List returns the user's documents
func (s *DocumentService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := s.documentRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return docs, nil
}

// Delete removes a document from the registry
func (s *DocumentService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	if err := s.documentRepo.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
