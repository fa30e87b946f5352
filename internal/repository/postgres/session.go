package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmargin/margin/internal/domain"
)

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	settingsJSON, err := json.Marshal(session.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	metadataJSON, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO chat_sessions (id, user_id, title, status, last_message, message_count, total_tokens, settings, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Title,
		session.Status,
		session.LastMessage,
		session.MessageCount,
		session.TotalTokens,
		settingsJSON,
		metadataJSON,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id, userID uuid.UUID) (*domain.ChatSession, error) {
	query := `
		SELECT id, user_id, title, status, last_message, message_count, total_tokens, settings, metadata, created_at, updated_at
		FROM chat_sessions
		WHERE id = $1 AND user_id = $2
	`
	s, err := scanSession(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, status domain.SessionStatus, limit, offset int) ([]domain.ChatSession, error) {
	query := `
		SELECT id, user_id, title, status, last_message, message_count, total_tokens, settings, metadata, created_at, updated_at
		FROM chat_sessions
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY updated_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, userID, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.ChatSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) Update(ctx context.Context, session *domain.ChatSession) error {
	settingsJSON, err := json.Marshal(session.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	metadataJSON, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE chat_sessions
		SET title = $1, status = $2, last_message = $3, message_count = $4, total_tokens = $5, settings = $6, metadata = $7, updated_at = $8
		WHERE id = $9 AND user_id = $10
	`
	_, err = r.pool.Exec(ctx, query,
		session.Title,
		session.Status,
		session.LastMessage,
		session.MessageCount,
		session.TotalTokens,
		settingsJSON,
		metadataJSON,
		session.UpdatedAt,
		session.ID,
		session.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM chat_sessions WHERE id = $1 AND user_id = $2`
	_, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*domain.ChatSession, error) {
	var s domain.ChatSession
	var settingsJSON, metadataJSON []byte

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Title,
		&s.Status,
		&s.LastMessage,
		&s.MessageCount,
		&s.TotalTokens,
		&settingsJSON,
		&metadataJSON,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &s.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &s.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &s, nil
}
