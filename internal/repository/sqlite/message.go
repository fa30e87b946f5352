package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/openmargin/margin/internal/domain"
)

// MessageRepository implements domain.MessageRepository on sqlite
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *domain.Message) error {
	metadataJSON, err := marshalJSON(message.Metadata)
	if err != nil {
		return err
	}
	docRefsJSON, err := marshalJSON(message.DocumentReferences)
	if err != nil {
		return err
	}
	annRefsJSON, err := marshalJSON(message.AnnotationReferences)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO chat_messages (id, session_id, role, content, tokens, model, metadata, document_references, annotation_references, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		message.ID.String(),
		message.SessionID.String(),
		string(message.Role),
		message.Content,
		message.Tokens,
		message.Model,
		metadataJSON,
		docRefsJSON,
		annRefsJSON,
		message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	query := `
		SELECT id, session_id, role, content, tokens, model, metadata, document_references, annotation_references, created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY created_at ASC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var id, sid, role, metadataJSON, docRefsJSON, annRefsJSON string

		if err := rows.Scan(
			&id,
			&sid,
			&role,
			&m.Content,
			&m.Tokens,
			&m.Model,
			&metadataJSON,
			&docRefsJSON,
			&annRefsJSON,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid message id: %w", err)
		}
		if m.SessionID, err = uuid.Parse(sid); err != nil {
			return nil, fmt.Errorf("invalid session id: %w", err)
		}
		m.Role = domain.MessageRole(role)

		if err := unmarshalJSON(metadataJSON, &m.Metadata); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(docRefsJSON, &m.DocumentReferences); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(annRefsJSON, &m.AnnotationReferences); err != nil {
			return nil, err
		}

		messages = append(messages, m)
	}
	return messages, rows.Err()
}
