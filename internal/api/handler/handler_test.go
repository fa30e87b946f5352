package handler_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openmargin/margin/internal/api/handler"
	"github.com/openmargin/margin/internal/api/middleware"
	"github.com/openmargin/margin/internal/contextmgr"
	"github.com/openmargin/margin/internal/domain"
	"github.com/openmargin/margin/internal/llm"
	"github.com/openmargin/margin/internal/service"
)

// In-memory repository stubs; just enough behavior for the handlers
// under test.

type stubSessionRepo struct {
	session *domain.ChatSession
}

func (s *stubSessionRepo) Create(ctx context.Context, session *domain.ChatSession) error {
	return nil
}

func (s *stubSessionRepo) Get(ctx context.Context, id, userID uuid.UUID) (*domain.ChatSession, error) {
	if s.session != nil && s.session.ID == id && s.session.UserID == userID {
		return s.session, nil
	}
	return nil, nil
}

func (s *stubSessionRepo) ListByUser(ctx context.Context, userID uuid.UUID, status domain.SessionStatus, limit, offset int) ([]domain.ChatSession, error) {
	return nil, nil
}

func (s *stubSessionRepo) Update(ctx context.Context, session *domain.ChatSession) error {
	return nil
}

func (s *stubSessionRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return nil
}

type stubMessageRepo struct {
	created int
}

func (m *stubMessageRepo) Create(ctx context.Context, message *domain.Message) error {
	m.created++
	return nil
}

func (m *stubMessageRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	return []domain.Message{}, nil
}

type stubContextRepo struct {
	saved *domain.ChatContext
}

func (c *stubContextRepo) GetBySession(ctx context.Context, sessionID uuid.UUID) (*domain.ChatContext, error) {
	return c.saved, nil
}

func (c *stubContextRepo) Save(ctx context.Context, chatCtx *domain.ChatContext) error {
	c.saved = chatCtx
	return nil
}

type stubDocumentRepo struct{}

func (d *stubDocumentRepo) Create(ctx context.Context, doc *domain.Document) error { return nil }

func (d *stubDocumentRepo) Get(ctx context.Context, id, userID uuid.UUID) (*domain.Document, error) {
	return nil, nil
}

func (d *stubDocumentRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Document, error) {
	return []domain.Document{}, nil
}

func (d *stubDocumentRepo) Delete(ctx context.Context, id, userID uuid.UUID) error { return nil }

// scriptedProvider replays a fixed envelope sequence
type scriptedProvider struct {
	envelopes []llm.Envelope
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Configured() bool { return true }

func (p *scriptedProvider) Initialize(context.Context) error { return nil }

func (p *scriptedProvider) ListModels(context.Context) []string { return []string{"scripted-model"} }

func (p *scriptedProvider) StreamCompletion(ctx context.Context, _ llm.Request) <-chan llm.Envelope {
	out := make(chan llm.Envelope)
	go func() {
		defer close(out)
		for _, env := range p.envelopes {
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(ctx context.Context) error { return p.err }

// injectUser places a user ID in the request context the way the auth
// middleware does after token validation.
func injectUser(userID uuid.UUID, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func makeJSONRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	handler.HealthCheck(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response["success"] != true {
		t.Error("expected success to be true")
	}

	data, ok := response["data"].(map[string]any)
	if !ok {
		t.Fatal("expected data to be a map")
	}

	if data["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", data["status"])
	}
}

func TestReadyCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	handler.ReadyCheck(&stubPinger{})(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ReadyCheck(&stubPinger{err: errors.New("down")})(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func newChatRouter(t *testing.T, userID uuid.UUID, chatService *service.ChatService) http.Handler {
	t.Helper()

	h := handler.NewChatHandler(chatService)
	r := chi.NewRouter()
	r.Post("/chat/sessions/{sessionID}/messages", h.Stream)
	return injectUser(userID, r)
}

func TestChatStream(t *testing.T) {
	router := llm.NewRouter("scripted-model")
	complete := llm.Complete("", map[string]any{"finish_reason": "stop"})
	router.RegisterProvider("scripted", &scriptedProvider{envelopes: []llm.Envelope{
		llm.Chunk("Hello"),
		llm.Chunk(" there"),
		complete,
	}}, false)
	router.RegisterModel("scripted-model", llm.ModelConfig{
		TechnicalName: "scripted-model",
		Provider:      "scripted",
	})

	session := &domain.ChatSession{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: domain.SessionActive,
	}
	messages := &stubMessageRepo{}
	chatService := service.NewChatService(
		&stubSessionRepo{session: session},
		messages,
		&stubContextRepo{},
		&stubDocumentRepo{},
		router,
		contextmgr.NewExtractor(),
		5*time.Second,
	)

	srv := newChatRouter(t, session.UserID, chatService)

	req := makeJSONRequest(http.MethodPost, "/chat/sessions/"+session.ID.String()+"/messages", map[string]any{
		"content": "I need to finish the report",
	})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	var envelopes []llm.Envelope
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var env llm.Envelope
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &env); err != nil {
			t.Fatalf("failed to decode envelope: %v", err)
		}
		envelopes = append(envelopes, env)
	}

	if len(envelopes) == 0 {
		t.Fatal("no envelopes received")
	}

	terminal := envelopes[len(envelopes)-1]
	if terminal.Type != llm.EnvelopeComplete {
		t.Fatalf("expected terminal complete envelope, got %q", terminal.Type)
	}
	if terminal.Content != "Hello there" {
		t.Errorf("expected accumulated content, got %q", terminal.Content)
	}

	// Exactly one terminal envelope in the stream.
	terminals := 0
	for _, env := range envelopes {
		if env.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("expected 1 terminal envelope, got %d", terminals)
	}

	if messages.created != 2 {
		t.Errorf("expected user and assistant messages persisted, got %d", messages.created)
	}
}

func TestChatStreamSessionNotFound(t *testing.T) {
	router := llm.NewRouter("scripted-model")
	chatService := service.NewChatService(
		&stubSessionRepo{},
		&stubMessageRepo{},
		&stubContextRepo{},
		&stubDocumentRepo{},
		router,
		contextmgr.NewExtractor(),
		5*time.Second,
	)

	srv := newChatRouter(t, uuid.New(), chatService)

	req := makeJSONRequest(http.MethodPost, "/chat/sessions/"+uuid.New().String()+"/messages", map[string]any{
		"content": "hello",
	})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestChatStreamRejectsEmptyContent(t *testing.T) {
	router := llm.NewRouter("scripted-model")
	chatService := service.NewChatService(
		&stubSessionRepo{},
		&stubMessageRepo{},
		&stubContextRepo{},
		&stubDocumentRepo{},
		router,
		contextmgr.NewExtractor(),
		5*time.Second,
	)

	srv := newChatRouter(t, uuid.New(), chatService)

	req := makeJSONRequest(http.MethodPost, "/chat/sessions/"+uuid.New().String()+"/messages", map[string]any{
		"content": "",
	})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestModelList(t *testing.T) {
	router := llm.NewRouter("scripted-model")
	router.RegisterProvider("scripted", &scriptedProvider{}, false)
	router.RegisterModel("scripted-model", llm.ModelConfig{
		TechnicalName: "scripted-model",
		CommonName:    "Scripted",
		Provider:      "scripted",
	})

	h := handler.NewModelHandler(service.NewModelService(router, nil))

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/models", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response struct {
		Data struct {
			Models       []llm.ModelSummary `json:"models"`
			DefaultModel string             `json:"default_model"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Data.Models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(response.Data.Models))
	}
	if response.Data.DefaultModel != "scripted-model" {
		t.Errorf("expected default model scripted-model, got %q", response.Data.DefaultModel)
	}
}
