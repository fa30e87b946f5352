package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openmargin/margin/internal/api/handler"
	customMiddleware "github.com/openmargin/margin/internal/api/middleware"
	"github.com/openmargin/margin/internal/config"
	"github.com/openmargin/margin/internal/contextmgr"
	"github.com/openmargin/margin/internal/domain"
	"github.com/openmargin/margin/internal/llm"
	"github.com/openmargin/margin/internal/repository/redis"
	"github.com/openmargin/margin/internal/security"
	"github.com/openmargin/margin/internal/service"
)

// Dependencies carries the storage backends assembled in cmd/server.
// Repositories are interfaces so the postgres and sqlite drivers are
// interchangeable; Redis is nil when disabled.
type Dependencies struct {
	DB        handler.Pinger
	Sessions  domain.SessionRepository
	Messages  domain.MessageRepository
	Contexts  domain.ContextRepository
	Documents domain.DocumentRepository
	Users     domain.UserRepository
	Redis     *redis.Client
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, llmRouter *llm.Router, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize security components
	jwtManager := security.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	// Redis-backed pieces are optional
	var rateLimiter *redis.RateLimiter
	var modelCache *redis.ModelCache
	if deps.Redis != nil {
		rateLimiter = redis.NewRateLimiter(
			deps.Redis,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
		modelCache = redis.NewModelCache(deps.Redis)
	}

	extractor := contextmgr.NewExtractor()

	// Initialize services
	authService := service.NewAuthService(deps.Users, jwtManager)
	sessionService := service.NewSessionService(deps.Sessions, deps.Messages)
	documentService := service.NewDocumentService(deps.Documents)
	contextService := service.NewContextService(deps.Contexts, deps.Sessions, deps.Documents, extractor)
	modelService := service.NewModelService(llmRouter, modelCache)
	chatService := service.NewChatService(
		deps.Sessions,
		deps.Messages,
		deps.Contexts,
		deps.Documents,
		llmRouter,
		extractor,
		cfg.LLM.DefaultTimeout,
	)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	chatHandler := handler.NewChatHandler(chatService)
	contextHandler := handler.NewContextHandler(contextService)
	documentHandler := handler.NewDocumentHandler(documentService)
	modelHandler := handler.NewModelHandler(modelService)

	// Auth middleware
	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager)
	rateLimitMiddleware := customMiddleware.NewRateLimitMiddleware(rateLimiter)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.DB))

		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(rateLimitMiddleware.Limit)

			r.Get("/auth/me", authHandler.Me)

			// Model registry
			r.Get("/models", modelHandler.List)
			r.Get("/models/{providerKey}/live", modelHandler.LiveModels)

			// Document registry
			r.Route("/documents", func(r chi.Router) {
				r.Get("/", documentHandler.List)
				r.Post("/", documentHandler.Create)
				r.Get("/{documentID}", documentHandler.Get)
				r.Delete("/{documentID}", documentHandler.Delete)
			})

			// Chat sessions
			r.Route("/chat/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.List)
				r.Post("/", sessionHandler.Create)

				r.Route("/{sessionID}", func(r chi.Router) {
					r.Get("/", sessionHandler.Get)
					r.Patch("/", sessionHandler.Update)
					r.Delete("/", sessionHandler.Delete)
					r.Post("/archive", sessionHandler.Archive)

					r.Get("/messages", sessionHandler.Messages)
					r.Post("/messages", chatHandler.Stream)

					r.Route("/context", func(r chi.Router) {
						r.Get("/", contextHandler.Get)
						r.Patch("/", contextHandler.Update)
						r.Patch("/tasks/{taskID}", contextHandler.UpdateTask)
						r.Get("/insights", contextHandler.Insights)
						r.Get("/documents", contextHandler.RelevantDocuments)
					})
				})
			})
		})
	})

	return r
}
