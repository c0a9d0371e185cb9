package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/mdhv11/cardwiz/model"
)

type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID int64) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.SelectContext(ctx, &txs,
		`SELECT * FROM transactions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id int64) (*model.Transaction, error) {
	var tx model.Transaction
	err := r.db.GetContext(ctx, &tx, `SELECT * FROM transactions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	query := `
		INSERT INTO transactions
			(user_id, amount, merchant, category, currency, transaction_date,
			 suggested_card_id, actual_card_id, potential_savings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	return r.db.GetContext(ctx, &tx.ID, query,
		tx.UserID, tx.Amount, tx.Merchant, tx.Category, tx.Currency,
		tx.TransactionDate, tx.SuggestedCardID, tx.ActualCardID, tx.PotentialSavings)
}

func (r *TransactionRepository) Update(ctx context.Context, tx *model.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET amount = $1, merchant = $2, category = $3, currency = $4,
		    transaction_date = $5, suggested_card_id = $6, actual_card_id = $7,
		    potential_savings = $8
		WHERE id = $9
	`, tx.Amount, tx.Merchant, tx.Category, tx.Currency,
		tx.TransactionDate, tx.SuggestedCardID, tx.ActualCardID, tx.PotentialSavings, tx.ID)
	return err
}

func (r *TransactionRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	return err
}
