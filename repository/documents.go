package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mdhv11/cardwiz/model"
)

type DocumentRepository struct {
	db *sqlx.DB
}

func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	doc.UploadedAt = time.Now()
	query := `
		INSERT INTO uploaded_documents (user_id, s3_key, document_type, status, ai_summary, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.db.GetContext(ctx, &doc.ID, query,
		doc.UserID, doc.S3Key, doc.DocumentType, doc.Status, doc.AISummary, doc.UploadedAt)
}

func (r *DocumentRepository) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	var doc model.Document
	err := r.db.GetContext(ctx, &doc, `SELECT * FROM uploaded_documents WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) FindByIDAndUser(ctx context.Context, id, userID int64) (*model.Document, error) {
	var doc model.Document
	err := r.db.GetContext(ctx, &doc,
		`SELECT * FROM uploaded_documents WHERE id = $1 AND user_id = $2`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id int64, status model.DocumentStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE uploaded_documents SET status = $1 WHERE id = $2`, status, id)
	return err
}

// MarkCompleted writes the terminal COMPLETED state together with the summary
// in one statement. A redelivered callback repeats the same write.
func (r *DocumentRepository) MarkCompleted(ctx context.Context, id int64, summary string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE uploaded_documents SET status = $1, ai_summary = $2 WHERE id = $3`,
		model.StatusCompleted, summary, id)
	return err
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id int64) error {
	return r.UpdateStatus(ctx, id, model.StatusFailed)
}
