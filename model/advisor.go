package model

import "time"

// AdvisorMessage is one entry in a user's chat-style advisor log.
type AdvisorMessage struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"userId"`
	Sender         string    `db:"sender" json:"sender"` // "user" | "bot"
	Text           string    `db:"text" json:"text"`
	MessageType    string    `db:"message_type" json:"messageType,omitempty"`
	MessagePayload string    `db:"message_payload" json:"messagePayload,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}
