package service

import "errors"

// Error kinds. Handlers map these onto HTTP statuses; everything else is an
// internal error.
var (
	// ErrValidation marks bad caller input. No state is mutated.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an unknown user, card, document or transaction.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized marks failed authentication. No detail is attached
	// about why.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrIntegration marks a transient failure talking to the AI subsystem,
	// the messaging backbone or blob storage. On the synchronous ingestion
	// path it propagates to the caller after the FAILED transition; during
	// fan-out it is logged and swallowed per rule.
	ErrIntegration = errors.New("integration error")
)
