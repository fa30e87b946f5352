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

// ContextRepository implements domain.ContextRepository. The
// chat_contexts table carries a unique constraint on session_id, so
// Save is an upsert keyed by session.
type ContextRepository struct {
	pool *pgxpool.Pool
}

// NewContextRepository creates a new context repository
func NewContextRepository(pool *pgxpool.Pool) *ContextRepository {
	return &ContextRepository{pool: pool}
}

func (r *ContextRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*domain.ChatContext, error) {
	query := `
		SELECT id, session_id, summary, current_goal, tasks, relevant_documents, created_at, updated_at
		FROM chat_contexts
		WHERE session_id = $1
	`
	var c domain.ChatContext
	var tasksJSON []byte

	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&c.ID,
		&c.SessionID,
		&c.Summary,
		&c.CurrentGoal,
		&tasksJSON,
		&c.RelevantDocuments,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get context: %w", err)
	}

	if len(tasksJSON) > 0 {
		if err := json.Unmarshal(tasksJSON, &c.Tasks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tasks: %w", err)
		}
	}
	return &c, nil
}

func (r *ContextRepository) Save(ctx context.Context, chatCtx *domain.ChatContext) error {
	tasksJSON, err := json.Marshal(chatCtx.Tasks)
	if err != nil {
		return fmt.Errorf("failed to marshal tasks: %w", err)
	}

	query := `
		INSERT INTO chat_contexts (id, session_id, summary, current_goal, tasks, relevant_documents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE
		SET summary = EXCLUDED.summary,
		    current_goal = EXCLUDED.current_goal,
		    tasks = EXCLUDED.tasks,
		    relevant_documents = EXCLUDED.relevant_documents,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query,
		chatCtx.ID,
		chatCtx.SessionID,
		chatCtx.Summary,
		chatCtx.CurrentGoal,
		tasksJSON,
		chatCtx.RelevantDocuments,
		chatCtx.CreatedAt,
		chatCtx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	return nil
}
