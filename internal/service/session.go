package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openmargin/margin/internal/domain"
)

// SessionService handles chat session lifecycle operations
type SessionService struct {
	sessionRepo domain.SessionRepository
	messageRepo domain.MessageRepository
}

// NewSessionService creates a new session service
func NewSessionService(sessionRepo domain.SessionRepository, messageRepo domain.MessageRepository) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
	}
}

// Create starts a new active session for the user
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID, title string, settings map[string]any) (*domain.ChatSession, error) {
	if title == "" {
		title = "New Chat"
	}

	now := time.Now()
	session := &domain.ChatSession{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Status:    domain.SessionActive,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Get returns one session owned by the user
func (s *SessionService) Get(ctx context.Context, id, userID uuid.UUID) (*domain.ChatSession, error) {
	session, err := s.sessionRepo.Get(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// List returns the user's sessions, optionally filtered by status
func (s *SessionService) List(ctx context.Context, userID uuid.UUID, status domain.SessionStatus, limit, offset int) ([]domain.ChatSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	sessions, err := s.sessionRepo.ListByUser(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []domain.ChatSession{}
	}
	return sessions, nil
}

// Update applies explicit edits (title, status) to a session
func (s *SessionService) Update(ctx context.Context, id, userID uuid.UUID, update domain.SessionUpdate) (*domain.ChatSession, error) {
	session, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		session.Title = *update.Title
	}
	if update.Status != nil {
		session.Status = *update.Status
	}
	session.UpdatedAt = time.Now()

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return session, nil
}

// Archive moves a session to the archived status
func (s *SessionService) Archive(ctx context.Context, id, userID uuid.UUID) (*domain.ChatSession, error) {
	archived := domain.SessionArchived
	return s.Update(ctx, id, userID, domain.SessionUpdate{Status: &archived})
}

// Delete removes a session and, via cascade, its messages and context
func (s *SessionService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	if err := s.sessionRepo.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Messages lists a session's messages in chronological order
func (s *SessionService) Messages(ctx context.Context, sessionID, userID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	if _, err := s.Get(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := s.messageRepo.ListBySession(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}
