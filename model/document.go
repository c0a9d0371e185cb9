package model

import "time"

// DocumentStatus is the ingestion lifecycle state of an uploaded document.
//
// Transitions: PENDING -> COMPLETED/FAILED on the synchronous path, or
// PENDING -> PROCESSING -> COMPLETED/FAILED on the asynchronous path where
// completion arrives via the ingestion callback. Terminal states are never
// left, but a duplicate callback may overwrite a terminal state with the same
// value (last write wins).
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusCompleted  DocumentStatus = "COMPLETED"
	StatusFailed     DocumentStatus = "FAILED"
)

// Terminal reports whether no further transition is defined out of s.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is an uploaded statement or card-terms document.
type Document struct {
	ID           int64          `db:"id" json:"id"`
	UserID       int64          `db:"user_id" json:"userId"`
	S3Key        string         `db:"s3_key" json:"s3Key"`
	DocumentType string         `db:"document_type" json:"documentType"`
	Status       DocumentStatus `db:"status" json:"status"`
	AISummary    string         `db:"ai_summary" json:"aiSummary,omitempty"`
	UploadedAt   time.Time      `db:"uploaded_at" json:"uploadedAt"`
}
