package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mdhv11/cardwiz/model"
	"github.com/mdhv11/cardwiz/pkg/cache"
)

// TransactionService manages the user's transaction log. Mutations invalidate
// cached recommendations since spending history feeds the ranking context.
type TransactionService struct {
	transactions TransactionStore
	cache        *cache.Cache
}

func NewTransactionService(transactions TransactionStore, c *cache.Cache) *TransactionService {
	return &TransactionService{transactions: transactions, cache: c}
}

func (s *TransactionService) List(ctx context.Context, userID int64) ([]model.Transaction, error) {
	txs, err := s.transactions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, txID int64) (*model.Transaction, error) {
	tx, err := s.transactions.FindByID(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if tx == nil || tx.UserID != userID {
		return nil, fmt.Errorf("%w: transaction %d", ErrNotFound, txID)
	}
	return tx, nil
}

func (s *TransactionService) Create(ctx context.Context, userID int64, tx *model.Transaction) (*model.Transaction, error) {
	if err := validateTransaction(tx); err != nil {
		return nil, err
	}

	tx.ID = 0
	tx.UserID = userID
	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	s.cache.EvictAll(ctx, "aiRecommendationsV2")
	return tx, nil
}

func (s *TransactionService) Update(ctx context.Context, userID, txID int64, tx *model.Transaction) (*model.Transaction, error) {
	existing, err := s.Get(ctx, userID, txID)
	if err != nil {
		return nil, err
	}
	if err := validateTransaction(tx); err != nil {
		return nil, err
	}

	existing.Amount = tx.Amount
	existing.Merchant = tx.Merchant
	existing.Category = tx.Category
	existing.Currency = tx.Currency
	existing.TransactionDate = tx.TransactionDate
	existing.SuggestedCardID = tx.SuggestedCardID
	existing.ActualCardID = tx.ActualCardID
	existing.PotentialSavings = tx.PotentialSavings
	if err := s.transactions.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	s.cache.EvictAll(ctx, "aiRecommendationsV2")
	return existing, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, txID int64) error {
	if _, err := s.Get(ctx, userID, txID); err != nil {
		return err
	}
	if err := s.transactions.Delete(ctx, txID); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	s.cache.EvictAll(ctx, "aiRecommendationsV2")
	return nil
}

func validateTransaction(tx *model.Transaction) error {
	if strings.TrimSpace(tx.Merchant) == "" {
		return fmt.Errorf("%w: merchant is required", ErrValidation)
	}
	if tx.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return nil
}
