package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/openmargin/margin/internal/domain"
	"github.com/openmargin/margin/internal/llm"
)

// MockSessionRepository mocks the SessionRepository interface
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) Get(ctx context.Context, id, userID uuid.UUID) (*domain.ChatSession, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, status domain.SessionStatus, limit, offset int) ([]domain.ChatSession, error) {
	args := m.Called(ctx, userID, status, limit, offset)
	return args.Get(0).([]domain.ChatSession), args.Error(1)
}

func (m *MockSessionRepository) Update(ctx context.Context, session *domain.ChatSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

// MockMessageRepository mocks the MessageRepository interface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	args := m.Called(ctx, sessionID, limit, offset)
	return args.Get(0).([]domain.Message), args.Error(1)
}

// MockContextRepository mocks the ContextRepository interface
type MockContextRepository struct {
	mock.Mock
}

func (m *MockContextRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*domain.ChatContext, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatContext), args.Error(1)
}

func (m *MockContextRepository) Save(ctx context.Context, chatCtx *domain.ChatContext) error {
	args := m.Called(ctx, chatCtx)
	return args.Error(0)
}

// MockDocumentRepository mocks the DocumentRepository interface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) Get(ctx context.Context, id, userID uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Document, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

// MockUserRepository mocks the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// fakeProvider is a scripted llm.Provider for orchestration tests
type fakeProvider struct {
	name      string
	envelopes []llm.Envelope
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Configured() bool { return true }

func (f *fakeProvider) Initialize(context.Context) error { return nil }

func (f *fakeProvider) ListModels(context.Context) []string { return []string{"fake-model"} }

func (f *fakeProvider) StreamCompletion(ctx context.Context, _ llm.Request) <-chan llm.Envelope {
	out := make(chan llm.Envelope)
	go func() {
		defer close(out)
		for _, env := range f.envelopes {
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
