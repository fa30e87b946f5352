package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/openmargin/margin/internal/domain"
)

// ContextRepository implements domain.ContextRepository on sqlite.
// Save upserts on the unique session_id column.
type ContextRepository struct {
	db *sql.DB
}

// NewContextRepository creates a new context repository
func NewContextRepository(db *sql.DB) *ContextRepository {
	return &ContextRepository{db: db}
}

func (r *ContextRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*domain.ChatContext, error) {
	query := `
		SELECT id, session_id, summary, current_goal, tasks, relevant_documents, created_at, updated_at
		FROM chat_contexts
		WHERE session_id = ?
	`
	var c domain.ChatContext
	var id, sid, tasksJSON, docsJSON string

	err := r.db.QueryRowContext(ctx, query, sessionID.String()).Scan(
		&id,
		&sid,
		&c.Summary,
		&c.CurrentGoal,
		&tasksJSON,
		&docsJSON,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get context: %w", err)
	}

	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid context id: %w", err)
	}
	if c.SessionID, err = uuid.Parse(sid); err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}
	if err := unmarshalJSON(tasksJSON, &c.Tasks); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(docsJSON, &c.RelevantDocuments); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContextRepository) Save(ctx context.Context, chatCtx *domain.ChatContext) error {
	tasksJSON, err := marshalJSON(chatCtx.Tasks)
	if err != nil {
		return err
	}
	docsJSON, err := marshalJSON(chatCtx.RelevantDocuments)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO chat_contexts (id, session_id, summary, current_goal, tasks, relevant_documents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE
		SET summary = excluded.summary,
		    current_goal = excluded.current_goal,
		    tasks = excluded.tasks,
		    relevant_documents = excluded.relevant_documents,
		    updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		chatCtx.ID.String(),
		chatCtx.SessionID.String(),
		chatCtx.Summary,
		chatCtx.CurrentGoal,
		tasksJSON,
		docsJSON,
		chatCtx.CreatedAt,
		chatCtx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	return nil
}
