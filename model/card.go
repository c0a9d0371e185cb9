package model

// Card is a user's credit card. DocStatus mirrors the status of the most
// recent ingestion attempt associated with this card; it is kept eventually
// consistent with the owning Document via the same transition events.
type Card struct {
	ID             int64          `db:"id" json:"id"`
	UserID         int64          `db:"user_id" json:"userId"`
	CardName       string         `db:"card_name" json:"cardName"`
	Issuer         string         `db:"issuer" json:"issuer"`
	Network        string         `db:"network" json:"network"`
	LastFourDigits string         `db:"last_four_digits" json:"lastFourDigits"`
	Active         bool           `db:"active" json:"active"`
	DocStatus      DocumentStatus `db:"doc_status" json:"docStatus,omitempty"`
}
