package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmargin/margin/internal/domain"
)

// DocumentRepository implements domain.DocumentRepository
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, user_id, title, format, tags, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		doc.ID,
		doc.UserID,
		doc.Title,
		doc.Format,
		doc.Tags,
		doc.Status,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, id, userID uuid.UUID) (*domain.Document, error) {
	query := `
		SELECT id, user_id, title, format, tags, status, created_at, updated_at
		FROM documents
		WHERE id = $1 AND user_id = $2
	`
	var d domain.Document
	err := r.pool.QueryRow(ctx, query, id, userID).Scan(
		&d.ID,
		&d.UserID,
		&d.Title,
		&d.Format,
		&d.Tags,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &d, nil
}

func (r *DocumentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Document, error) {
	query := `
		SELECT id, user_id, title, format, tags, status, created_at, updated_at
		FROM documents
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(
			&d.ID,
			&d.UserID,
			&d.Title,
			&d.Format,
			&d.Tags,
			&d.Status,
			&d.CreatedAt,
			&d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM documents WHERE id = $1 AND user_id = $2`
	_, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
