package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openmargin/margin/internal/contextmgr"
	"github.com/openmargin/margin/internal/domain"
)

// ContextService exposes a session's extracted context for reading and
// explicit edits. Automatic extraction happens inside the chat flow;
// this service is the manual path.
type ContextService struct {
	contextRepo  domain.ContextRepository
	sessionRepo  domain.SessionRepository
	documentRepo domain.DocumentRepository
	extractor    *contextmgr.Extractor
}

// NewContextService creates a new context service
func NewContextService(contextRepo domain.ContextRepository, sessionRepo domain.SessionRepository, documentRepo domain.DocumentRepository, extractor *contextmgr.Extractor) *ContextService {
	return &ContextService{
		contextRepo:  contextRepo,
		sessionRepo:  sessionRepo,
		documentRepo: documentRepo,
		extractor:    extractor,
	}
}

// Get returns the session's context, creating an empty one on first
// access so callers never see a missing context for a valid session.
func (s *ContextService) Get(ctx context.Context, sessionID, userID uuid.UUID) (*domain.ChatContext, error) {
	if err := s.checkSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	chatCtx, err := s.contextRepo.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get context: %w", err)
	}
	if chatCtx == nil {
		now := time.Now()
		chatCtx = &domain.ChatContext{
			ID:                uuid.New(),
			SessionID:         sessionID,
			Tasks:             []domain.Task{},
			RelevantDocuments: []string{},
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.contextRepo.Save(ctx, chatCtx); err != nil {
			return nil, fmt.Errorf("failed to create context: %w", err)
		}
	}
	return chatCtx, nil
}

// Update applies explicit edits to summary, goal, or document list.
// Unlike the automatic path, manual edits may overwrite the summary.
func (s *ContextService) Update(ctx context.Context, sessionID, userID uuid.UUID, update domain.ContextUpdate) (*domain.ChatContext, error) {
	chatCtx, err := s.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if update.Summary != nil {
		chatCtx.Summary = *update.Summary
	}
	if update.CurrentGoal != nil {
		chatCtx.CurrentGoal = *update.CurrentGoal
	}
	if update.RelevantDocuments != nil {
		chatCtx.RelevantDocuments = update.RelevantDocuments
	}
	chatCtx.UpdatedAt = time.Now()

	if err := s.contextRepo.Save(ctx, chatCtx); err != nil {
		return nil, fmt.Errorf("failed to save context: %w", err)
	}
	return chatCtx, nil
}

// UpdateTask edits one task in place. Tasks are never deleted, only
// status-transitioned.
func (s *ContextService) UpdateTask(ctx context.Context, sessionID, userID uuid.UUID, taskID string, update domain.TaskUpdate) (*domain.ChatContext, error) {
	chatCtx, err := s.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range chatCtx.Tasks {
		if chatCtx.Tasks[i].ID != taskID {
			continue
		}
		found = true

		task := &chatCtx.Tasks[i]
		if update.Description != nil {
			task.Description = *update.Description
		}
		if update.Priority != nil {
			task.Priority = *update.Priority
		}
		if update.Status != nil && *update.Status != task.Status {
			task.Status = *update.Status
			if task.Status == domain.TaskCompleted {
				now := time.Now()
				task.CompletedAt = &now
			} else {
				task.CompletedAt = nil
			}
		}
		break
	}
	if !found {
		return nil, ErrTaskNotFound
	}

	chatCtx.UpdatedAt = time.Now()
	if err := s.contextRepo.Save(ctx, chatCtx); err != nil {
		return nil, fmt.Errorf("failed to save context: %w", err)
	}
	return chatCtx, nil
}

// RelevantDocuments re-scores the user's documents against the stored
// context and returns the ones that match.
func (s *ContextService) RelevantDocuments(ctx context.Context, sessionID, userID uuid.UUID) ([]domain.Document, error) {
	chatCtx, err := s.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	docs, err := s.documentRepo.ListByUser(ctx, userID, 100, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		return []domain.Document{}, nil
	}

	var text strings.Builder
	text.WriteString(chatCtx.Summary)
	text.WriteString(" ")
	text.WriteString(chatCtx.CurrentGoal)
	for _, task := range chatCtx.Tasks {
		text.WriteString(" ")
		text.WriteString(task.Description)
	}

	ids := s.extractor.RelevantDocuments(text.String(), docs)
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	relevant := make([]domain.Document, 0, len(ids))
	for _, doc := range docs {
		if idSet[doc.ID.String()] {
			relevant = append(relevant, doc)
		}
	}
	return relevant, nil
}

// Insights derives the read-only summary view over the context
func (s *ContextService) Insights(ctx context.Context, sessionID, userID uuid.UUID) (contextmgr.Insights, error) {
	chatCtx, err := s.Get(ctx, sessionID, userID)
	if err != nil {
		return contextmgr.Insights{}, err
	}
	return s.extractor.Insights(chatCtx), nil
}

func (s *ContextService) checkSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	session, err := s.sessionRepo.Get(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return ErrSessionNotFound
	}
	return nil
}
