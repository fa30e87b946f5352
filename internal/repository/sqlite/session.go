package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/openmargin/margin/internal/domain"
)

// SessionRepository implements domain.SessionRepository on sqlite
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	settingsJSON, err := marshalJSON(session.Settings)
	if err != nil {
		return err
	}
	metadataJSON, err := marshalJSON(session.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO chat_sessions (id, user_id, title, status, last_message, message_count, total_tokens, settings, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		session.ID.String(),
		session.UserID.String(),
		session.Title,
		string(session.Status),
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
		WHERE id = ? AND user_id = ?
	`
	s, err := scanSession(r.db.QueryRowContext(ctx, query, id.String(), userID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
		WHERE user_id = ? AND (? = '' OR status = ?)
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, userID.String(), string(status), string(status), limit, offset)
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
	settingsJSON, err := marshalJSON(session.Settings)
	if err != nil {
		return err
	}
	metadataJSON, err := marshalJSON(session.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE chat_sessions
		SET title = ?, status = ?, last_message = ?, message_count = ?, total_tokens = ?, settings = ?, metadata = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`
	_, err = r.db.ExecContext(ctx, query,
		session.Title,
		string(session.Status),
		session.LastMessage,
		session.MessageCount,
		session.TotalTokens,
		settingsJSON,
		metadataJSON,
		session.UpdatedAt,
		session.ID.String(),
		session.UserID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM chat_sessions WHERE id = ? AND user_id = ?`
	_, err := r.db.ExecContext(ctx, query, id.String(), userID.String())
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.ChatSession, error) {
	var s domain.ChatSession
	var id, userID, status, settingsJSON, metadataJSON string

	err := row.Scan(
		&id,
		&userID,
		&s.Title,
		&status,
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

	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}
	if s.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	s.Status = domain.SessionStatus(status)

	if err := unmarshalJSON(settingsJSON, &s.Settings); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(metadataJSON, &s.Metadata); err != nil {
		return nil, err
	}
	return &s, nil
}
