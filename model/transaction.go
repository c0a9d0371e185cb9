package model

import "time"

// Transaction records a purchase plus what the advisor suggested for it.
type Transaction struct {
	ID               int64      `db:"id" json:"id"`
	UserID           int64      `db:"user_id" json:"userId"`
	Amount           float64    `db:"amount" json:"amount"`
	Merchant         string     `db:"merchant" json:"merchant"`
	Category         string     `db:"category" json:"category"`
	Currency         string     `db:"currency" json:"currency"`
	TransactionDate  *time.Time `db:"transaction_date" json:"transactionDate,omitempty"`
	SuggestedCardID  *int64     `db:"suggested_card_id" json:"suggestedCardId,omitempty"`
	ActualCardID     *int64     `db:"actual_card_id" json:"actualCardId,omitempty"`
	PotentialSavings *float64   `db:"potential_savings" json:"potentialSavings,omitempty"`
}
