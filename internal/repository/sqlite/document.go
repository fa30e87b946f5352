package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/openmargin/margin/internal/domain"
)

// DocumentRepository implements domain.DocumentRepository on sqlite
type DocumentRepository struct {
	db *sql.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	tagsJSON, err := marshalJSON(doc.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (id, user_id, title, format, tags, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		doc.ID.String(),
		doc.UserID.String(),
		doc.Title,
		doc.Format,
		tagsJSON,
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
		WHERE id = ? AND user_id = ?
	`
	d, err := scanDocument(r.db.QueryRowContext(ctx, query, id.String(), userID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Document, error) {
	query := `
		SELECT id, user_id, title, format, tags, status, created_at, updated_at
		FROM documents
		WHERE user_id = ?
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, userID.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM documents WHERE id = ? AND user_id = ?`
	_, err := r.db.ExecContext(ctx, query, id.String(), userID.String())
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var d domain.Document
	var id, userID, tagsJSON string

	err := row.Scan(
		&id,
		&userID,
		&d.Title,
		&d.Format,
		&tagsJSON,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if d.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid document id: %w", err)
	}
	if d.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	if err := unmarshalJSON(tagsJSON, &d.Tags); err != nil {
		return nil, err
	}
	return &d, nil
}
