package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/openmargin/margin/internal/api/middleware"
	"github.com/openmargin/margin/internal/api/response"
	"github.com/openmargin/margin/internal/domain"
	"github.com/openmargin/margin/internal/service"
)

// ChatHandler handles the streaming chat endpoint
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Stream sends a message to a session and streams the assistant's
// reply back as Server-Sent Events. Each event carries one envelope;
// the stream always ends with a complete or error envelope.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id, err := sessionID(r)
	if err != nil {
		response.BadRequest(w, "invalid session ID")
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		if messages, ok := validationMessages(err); ok {
			response.BadRequest(w, messages)
			return
		}
		response.BadRequest(w, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, "streaming not supported")
		return
	}

	ch, err := h.chatService.StreamMessage(r.Context(), userID, id, req)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "failed to start stream")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for env := range ch {
		payload, err := json.Marshal(env)
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal stream envelope")
			continue
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; the service sees the cancelled request
			// context and stops on its own.
			return
		}
		flusher.Flush()
	}
}
