package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mdhv11/cardwiz/model"
)

type AdvisorRepository struct {
	db *sqlx.DB
}

func NewAdvisorRepository(db *sqlx.DB) *AdvisorRepository {
	return &AdvisorRepository{db: db}
}

func (r *AdvisorRepository) ListByUser(ctx context.Context, userID int64) ([]model.AdvisorMessage, error) {
	var messages []model.AdvisorMessage
	err := r.db.SelectContext(ctx, &messages,
		`SELECT * FROM advisor_messages WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *AdvisorRepository) Create(ctx context.Context, msg *model.AdvisorMessage) error {
	msg.CreatedAt = time.Now()
	query := `
		INSERT INTO advisor_messages (user_id, sender, text, message_type, message_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.db.GetContext(ctx, &msg.ID, query,
		msg.UserID, msg.Sender, msg.Text, msg.MessageType, msg.MessagePayload, msg.CreatedAt)
}
