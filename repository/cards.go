package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/mdhv11/cardwiz/model"
)

type CardRepository struct {
	db *sqlx.DB
}

func NewCardRepository(db *sqlx.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) ListByUser(ctx context.Context, userID int64) ([]model.Card, error) {
	var cards []model.Card
	err := r.db.SelectContext(ctx, &cards,
		`SELECT * FROM user_cards WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return cards, nil
}

func (r *CardRepository) FindByID(ctx context.Context, id int64) (*model.Card, error) {
	var card model.Card
	err := r.db.GetContext(ctx, &card, `SELECT * FROM user_cards WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *CardRepository) Create(ctx context.Context, card *model.Card) error {
	query := `
		INSERT INTO user_cards (user_id, card_name, issuer, network, last_four_digits, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.db.GetContext(ctx, &card.ID, query,
		card.UserID, card.CardName, card.Issuer, card.Network, card.LastFourDigits, card.Active)
}

func (r *CardRepository) Update(ctx context.Context, card *model.Card) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_cards
		SET card_name = $1, issuer = $2, network = $3, last_four_digits = $4, active = $5
		WHERE id = $6
	`, card.CardName, card.Issuer, card.Network, card.LastFourDigits, card.Active, card.ID)
	return err
}

func (r *CardRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_cards WHERE id = $1`, id)
	return err
}

// UpdateDocStatus writes the per-card document-status mirror. Last write wins;
// there is no optimistic locking on this column.
func (r *CardRepository) UpdateDocStatus(ctx context.Context, id int64, status model.DocumentStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_cards SET doc_status = $1 WHERE id = $2`, status, id)
	return err
}
