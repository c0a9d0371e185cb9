package service

import (
	"context"

	"github.com/mdhv11/cardwiz/model"
)

// Store interfaces consumed by the services. The repository package provides
// the postgres implementations; tests substitute fakes.

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, id int64, hashed string) error
}

type CardStore interface {
	ListByUser(ctx context.Context, userID int64) ([]model.Card, error)
	FindByID(ctx context.Context, id int64) (*model.Card, error)
	Create(ctx context.Context, card *model.Card) error
	Update(ctx context.Context, card *model.Card) error
	Delete(ctx context.Context, id int64) error
	UpdateDocStatus(ctx context.Context, id int64, status model.DocumentStatus) error
}

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id int64) (*model.Document, error)
	FindByIDAndUser(ctx context.Context, id, userID int64) (*model.Document, error)
	UpdateStatus(ctx context.Context, id int64, status model.DocumentStatus) error
	MarkCompleted(ctx context.Context, id int64, summary string) error
	MarkFailed(ctx context.Context, id int64) error
}

type TransactionStore interface {
	ListByUser(ctx context.Context, userID int64) ([]model.Transaction, error)
	FindByID(ctx context.Context, id int64) (*model.Transaction, error)
	Create(ctx context.Context, tx *model.Transaction) error
	Update(ctx context.Context, tx *model.Transaction) error
	Delete(ctx context.Context, id int64) error
}

type AdvisorStore interface {
	ListByUser(ctx context.Context, userID int64) ([]model.AdvisorMessage, error)
	Create(ctx context.Context, msg *model.AdvisorMessage) error
}
