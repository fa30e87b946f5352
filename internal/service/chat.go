package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openmargin/margin/internal/contextmgr"
	"github.com/openmargin/margin/internal/domain"
	"github.com/openmargin/margin/internal/llm"
)

const historyLimit = 20

// ChatService orchestrates one chat turn: persist the user message,
// assemble the conversation, stream the model response, and fold the
// finished turn back into stored messages and context.
type ChatService struct {
	sessionRepo  domain.SessionRepository
	messageRepo  domain.MessageRepository
	contextRepo  domain.ContextRepository
	documentRepo domain.DocumentRepository
	router       *llm.Router
	extractor    *contextmgr.Extractor
	timeout      time.Duration
	locks        sessionLocks
}

// NewChatService creates a new chat service
func NewChatService(
	sessionRepo domain.SessionRepository,
	messageRepo domain.MessageRepository,
	contextRepo domain.ContextRepository,
	documentRepo domain.DocumentRepository,
	router *llm.Router,
	extractor *contextmgr.Extractor,
	timeout time.Duration,
) *ChatService {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &ChatService{
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		contextRepo:  contextRepo,
		documentRepo: documentRepo,
		router:       router,
		extractor:    extractor,
		timeout:      timeout,
		locks:        sessionLocks{locks: make(map[uuid.UUID]*sessionLock)},
	}
}

// StreamMessage runs one chat turn and streams envelopes back to the
// caller. Session lookup and ownership fail synchronously, before any
// streaming starts; everything after that surfaces on the channel.
// Turns on the same session are serialized; a new turn does not start
// until the previous one has reached a terminal envelope.
func (s *ChatService) StreamMessage(ctx context.Context, userID, sessionID uuid.UUID, req domain.ChatRequest) (<-chan llm.Envelope, error) {
	session, err := s.sessionRepo.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	out := make(chan llm.Envelope)
	go s.run(ctx, out, session, req)
	return out, nil
}

func (s *ChatService) run(ctx context.Context, out chan<- llm.Envelope, session *domain.ChatSession, req domain.ChatRequest) {
	defer close(out)

	lock := s.locks.acquire(session.ID)
	defer s.locks.release(session.ID, lock)

	modelID := req.Model
	if modelID == "" {
		modelID = s.router.DefaultModel()
	}
	provider, modelCfg, err := s.router.Resolve(modelID)
	if err != nil {
		s.emit(ctx, out, llm.ErrorEnvelope(err.Error()))
		return
	}

	temperature := modelCfg.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := modelCfg.DefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	// History is read before the new user message is stored so the
	// conversation ends with exactly one copy of it.
	history, err := s.messageRepo.ListBySession(ctx, session.ID, historyLimit, 0)
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to fetch history")
		history = nil
	}

	chatCtx, err := s.contextRepo.GetBySession(ctx, session.ID)
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to load context")
		chatCtx = nil
	}

	userMsg := &domain.Message{
		ID:        uuid.New(),
		SessionID: session.ID,
		Role:      domain.RoleUser,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}
	if err := s.messageRepo.Create(ctx, userMsg); err != nil {
		log.Error().Err(err).Msg("failed to save user message")
	}

	messages := buildConversation(chatCtx, req.ContextOptions, history, req.Content)

	providerCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stream := provider.StreamCompletion(providerCtx, llm.Request{
		Model:       modelCfg.TechnicalName,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})

	var full strings.Builder
	var terminal llm.Envelope
	finished := false

	for env := range stream {
		switch env.Type {
		case llm.EnvelopeChunk:
			full.WriteString(env.Content)
			if !s.emit(ctx, out, env) {
				// Client disconnected before a terminal envelope;
				// discard the partial response.
				return
			}
		case llm.EnvelopeComplete:
			terminal = env
			finished = true
		case llm.EnvelopeError:
			s.emit(ctx, out, env)
			return
		}
		if finished {
			break
		}
	}
	if !finished {
		s.emit(ctx, out, llm.ErrorEnvelope("stream ended unexpectedly"))
		return
	}

	content := full.String()

	assistantMsg := &domain.Message{
		ID:        uuid.New(),
		SessionID: session.ID,
		Role:      domain.RoleAssistant,
		Content:   content,
		Tokens:    terminal.Tokens,
		Model:     modelID,
		Metadata:  terminal.Metadata,
		CreatedAt: time.Now(),
	}
	if err := s.messageRepo.Create(ctx, assistantMsg); err != nil {
		log.Error().Err(err).Msg("failed to save assistant message")
		s.emit(ctx, out, llm.ErrorEnvelope("failed to persist response"))
		return
	}

	s.updateSessionStats(ctx, session, req.Content, content, terminal.Tokens)

	if req.ContextOptions.ContextUpdatesEnabled() {
		if updated := s.updateContext(ctx, session, chatCtx, req.Content, content); updated != nil {
			s.emit(ctx, out, llm.Envelope{
				Type: llm.EnvelopeContextUpdate,
				Metadata: map[string]any{
					"summary":            updated.Summary,
					"current_goal":       updated.CurrentGoal,
					"task_count":         len(updated.Tasks),
					"relevant_documents": updated.RelevantDocuments,
				},
			})
		}
	}

	done := llm.Complete(content, terminal.Metadata)
	done.MessageID = assistantMsg.ID.String()
	done.Tokens = terminal.Tokens
	s.emit(ctx, out, done)
}

// updateSessionStats refreshes the session's preview line and counters
func (s *ChatService) updateSessionStats(ctx context.Context, session *domain.ChatSession, userContent, content string, tokens *int) {
	// First completed turn on an untitled session names it after the
	// opening question.
	if session.MessageCount == 0 && (session.Title == "" || session.Title == "New Chat") {
		session.Title = truncate(strings.TrimSpace(userContent), 50)
	}

	session.LastMessage = truncate(content, 100)
	session.MessageCount += 2 // user turn plus assistant turn
	if tokens != nil {
		session.TotalTokens += *tokens
	}
	session.UpdatedAt = time.Now()

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to update session stats")
	}
}

// updateContext runs extraction over the finished turn and persists
// the merged context. Failures are logged and absorbed; the chat turn
// has already succeeded by the time this runs.
func (s *ChatService) updateContext(ctx context.Context, session *domain.ChatSession, chatCtx *domain.ChatContext, userText, assistantText string) *domain.ChatContext {
	if chatCtx == nil {
		now := time.Now()
		chatCtx = &domain.ChatContext{
			ID:                uuid.New(),
			SessionID:         session.ID,
			Tasks:             []domain.Task{},
			RelevantDocuments: []string{},
			CreatedAt:         now,
			UpdatedAt:         now,
		}
	}

	s.extractor.UpdateFromConversation(chatCtx, userText, assistantText)

	if docs, err := s.documentRepo.ListByUser(ctx, session.UserID, 100, 0); err == nil && len(docs) > 0 {
		relevant := s.extractor.RelevantDocuments(userText+" "+assistantText, docs)
		chatCtx.RelevantDocuments = mergeIDs(chatCtx.RelevantDocuments, relevant)
	}

	if err := s.contextRepo.Save(ctx, chatCtx); err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to save context")
		return nil
	}
	return chatCtx
}

func (s *ChatService) emit(ctx context.Context, out chan<- llm.Envelope, env llm.Envelope) bool {
	select {
	case out <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

// buildConversation assembles the provider message list: an optional
// system prompt derived from context, prior turns, then the new user
// message.
func buildConversation(chatCtx *domain.ChatContext, opts domain.ContextOptions, history []domain.Message, userContent string) []llm.Message {
	var messages []llm.Message

	if prompt := buildSystemPrompt(chatCtx, opts); prompt != "" {
		messages = append(messages, llm.Message{Role: "system", Content: prompt})
	}

	for _, msg := range history {
		if msg.Role == domain.RoleSystem {
			continue
		}
		messages = append(messages, llm.Message{Role: string(msg.Role), Content: msg.Content})
	}

	messages = append(messages, llm.Message{Role: "user", Content: userContent})
	return messages
}

// buildSystemPrompt renders the session context into instructions for
// the model
func buildSystemPrompt(chatCtx *domain.ChatContext, opts domain.ContextOptions) string {
	if chatCtx == nil {
		return ""
	}

	parts := []string{
		"You are a helpful AI assistant. Provide clear, accurate, and contextual responses.",
	}

	if chatCtx.Summary != "" {
		parts = append(parts, "\nCurrent Problem Context:\n"+chatCtx.Summary)
	}
	if chatCtx.CurrentGoal != "" {
		parts = append(parts, "\nCurrent Goal: "+chatCtx.CurrentGoal)
	}

	var active []string
	for _, task := range chatCtx.Tasks {
		if task.Status != domain.TaskCompleted {
			active = append(active, "- "+task.Description)
		}
	}
	if len(active) > 0 {
		parts = append(parts, "\nActive Tasks:\n"+strings.Join(active, "\n"))
	}

	if len(opts.DocumentIDs) > 0 {
		parts = append(parts, "\nYou have access to specific documents in this conversation. Reference them when relevant to provide accurate information.")
	}

	return strings.Join(parts, "\n")
}

// truncate shortens s to at most max characters, cutting on a rune
// boundary so multibyte text stays valid UTF-8.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func mergeIDs(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	for _, id := range incoming {
		if _, ok := seen[id]; !ok {
			existing = append(existing, id)
			seen[id] = struct{}{}
		}
	}
	return existing
}

// sessionLocks serializes chat turns per session while leaving turns
// on different sessions fully concurrent. Entries are reference
// counted so the map does not grow with session count.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (l *sessionLocks) acquire(id uuid.UUID) *sessionLock {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return sl
}

func (l *sessionLocks) release(id uuid.UUID, sl *sessionLock) {
	sl.mu.Unlock()

	l.mu.Lock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()
}
