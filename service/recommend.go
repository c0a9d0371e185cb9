package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mdhv11/cardwiz/model"
	"github.com/mdhv11/cardwiz/pkg/cache"
)

const historyContextSize = 5

// RecommendQuery is a card-recommendation request from a client.
type RecommendQuery struct {
	MerchantName string  `json:"merchantName"`
	Category     string  `json:"category"`
	Amount       float64 `json:"transactionAmount"`
	Currency     string  `json:"currency"`
	ContextNotes string  `json:"contextNotes"`
	CardIDs      []int64 `json:"cardIds"`
}

// ValidationQuery records a purchase the user already made and asks what it
// cost them relative to the optimal card.
type ValidationQuery struct {
	MerchantName    string     `json:"merchantName"`
	Category        string     `json:"category"`
	Amount          float64    `json:"amount"`
	Currency        string     `json:"currency"`
	ActualCardID    int64      `json:"actualCardId"`
	TransactionDate *time.Time `json:"transactionDate"`
	ContextNotes    string     `json:"contextNotes"`
}

// MissedSavingsQuery asks for a retrospective analysis of a statement already
// sitting in blob storage.
type MissedSavingsQuery struct {
	StatementS3Key    string `json:"statementS3Key"`
	ActualCardID      int64  `json:"actualCardId"`
	Currency          string `json:"currency"`
	ContextNotes      string `json:"contextNotes"`
	LimitTransactions int    `json:"limitTransactions"`
}

// ValidationResult reports the outcome of validating a purchase against the
// recommendation the advisor would have made.
type ValidationResult struct {
	TransactionID    int64   `json:"transactionId"`
	SuggestedCardID  *int64  `json:"suggestedCardId,omitempty"`
	ActualCardID     int64   `json:"actualCardId"`
	PotentialSavings float64 `json:"potentialSavings"`
	Reasoning        string  `json:"reasoning,omitempty"`
}

// RecommendationService enriches ranking requests with the user's card
// holdings and recent spending before handing them to the ranking backend.
type RecommendationService struct {
	cards        CardStore
	transactions TransactionStore
	ai           AIGateway
	storage      BlobStorage
	cache        *cache.Cache
}

func NewRecommendationService(cards CardStore, transactions TransactionStore, ai AIGateway, storage BlobStorage, c *cache.Cache) *RecommendationService {
	return &RecommendationService{
		cards:        cards,
		transactions: transactions,
		ai:           ai,
		storage:      storage,
		cache:        c,
	}
}

// Recommend ranks the user's cards for a purchase. The request's card list is
// narrowed to cards the user actually holds and has active; an empty list
// means all active cards. Recent transaction history is folded into the
// context notes so the ranking backend sees spending patterns.
func (s *RecommendationService) Recommend(ctx context.Context, userID int64, q *RecommendQuery) (*Recommendation, error) {
	if strings.TrimSpace(q.MerchantName) == "" {
		return nil, fmt.Errorf("%w: merchantName is required", ErrValidation)
	}
	if q.Amount <= 0 {
		return nil, fmt.Errorf("%w: transactionAmount must be positive", ErrValidation)
	}

	active, err := s.activeCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	eligible := eligibleCardIDs(q.CardIDs, active)
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: no active cards available for recommendation", ErrValidation)
	}

	history, err := s.recentHistoryContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.ai.GetRecommendation(ctx, &RecommendationRequest{
		UserID:            userID,
		MerchantName:      q.MerchantName,
		Category:          q.Category,
		TransactionAmount: q.Amount,
		Currency:          q.Currency,
		ContextNotes:      mergeContextNotes(q.ContextNotes, history),
		AvailableCardIDs:  eligible,
	})
}

// Validate compares a purchase the user already made against the card the
// advisor would have picked, records the transaction with the gap attached,
// and returns the verdict.
func (s *RecommendationService) Validate(ctx context.Context, userID int64, q *ValidationQuery) (*ValidationResult, error) {
	if strings.TrimSpace(q.MerchantName) == "" {
		return nil, fmt.Errorf("%w: merchantName is required", ErrValidation)
	}
	if q.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	active, err := s.activeCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: no active cards on file", ErrValidation)
	}
	if !containsCard(active, q.ActualCardID) {
		return nil, fmt.Errorf("%w: actualCardId %d is not one of your active cards", ErrValidation, q.ActualCardID)
	}

	rec, err := s.Recommend(ctx, userID, &RecommendQuery{
		MerchantName: q.MerchantName,
		Category:     q.Category,
		Amount:       q.Amount,
		Currency:     q.Currency,
		ContextNotes: q.ContextNotes,
	})
	if err != nil {
		return nil, err
	}

	suggestedID := suggestedCardID(rec)
	savings := roundTwoDecimals(potentialSavings(rec, q.ActualCardID))

	date := q.TransactionDate
	if date == nil {
		now := time.Now()
		date = &now
	}
	tx := &model.Transaction{
		UserID:           userID,
		Amount:           q.Amount,
		Merchant:         q.MerchantName,
		Category:         q.Category,
		Currency:         q.Currency,
		TransactionDate:  date,
		SuggestedCardID:  suggestedID,
		ActualCardID:     &q.ActualCardID,
		PotentialSavings: &savings,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to record validated transaction: %w", err)
	}
	s.cache.EvictAll(ctx, "aiRecommendationsV2")

	return &ValidationResult{
		TransactionID:    tx.ID,
		SuggestedCardID:  suggestedID,
		ActualCardID:     q.ActualCardID,
		PotentialSavings: savings,
		Reasoning:        rec.Reasoning,
	}, nil
}

// StatementMissedSavings replays a statement's transactions against the
// user's active cards and reports what switching cards would have earned.
// The statement itself is read by the analysis backend straight from blob
// storage; only the key travels here.
func (s *RecommendationService) StatementMissedSavings(ctx context.Context, userID int64, q *MissedSavingsQuery) (*MissedSavingsReport, error) {
	if strings.TrimSpace(q.StatementS3Key) == "" {
		return nil, fmt.Errorf("%w: statementS3Key is required", ErrValidation)
	}

	active, err := s.activeCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: no active cards on file", ErrValidation)
	}
	if q.ActualCardID != 0 && !containsCard(active, q.ActualCardID) {
		return nil, fmt.Errorf("%w: actualCardId %d is not one of your active cards", ErrValidation, q.ActualCardID)
	}

	ids := make([]int64, 0, len(active))
	for _, c := range active {
		ids = append(ids, c.ID)
	}

	return s.ai.AnalyzeStatementMissedSavings(ctx, &MissedSavingsRequest{
		UserID:            userID,
		StatementS3Key:    q.StatementS3Key,
		ActualCardID:      q.ActualCardID,
		AvailableCardIDs:  ids,
		Bucket:            s.storage.Bucket(),
		Currency:          q.Currency,
		ContextNotes:      q.ContextNotes,
		LimitTransactions: q.LimitTransactions,
	})
}

func (s *RecommendationService) activeCards(ctx context.Context, userID int64) ([]model.Card, error) {
	cards, err := s.cards.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	active := make([]model.Card, 0, len(cards))
	for _, c := range cards {
		if c.Active {
			active = append(active, c)
		}
	}
	return active, nil
}

// recentHistoryContext flattens the user's most recent transactions into a
// compact line for the ranking backend. Newest first; transactions without a
// date sort last.
func (s *RecommendationService) recentHistoryContext(ctx context.Context, userID int64) (string, error) {
	txs, err := s.transactions.ListByUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to list transactions: %w", err)
	}
	if len(txs) == 0 {
		return "", nil
	}

	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i].TransactionDate, txs[j].TransactionDate
		switch {
		case a == nil && b == nil:
			return txs[i].ID > txs[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return txs[i].ID > txs[j].ID
		default:
			return a.After(*b)
		}
	})
	if len(txs) > historyContextSize {
		txs = txs[:historyContextSize]
	}

	parts := make([]string, 0, len(txs))
	for _, tx := range txs {
		parts = append(parts, strings.Join([]string{
			defaultString(tx.Merchant, "unknown-merchant"),
			defaultString(tx.Category, "general"),
			defaultString(tx.Currency, "INR"),
			strconv.FormatFloat(tx.Amount, 'f', -1, 64),
		}, ":"))
	}
	return strings.Join(parts, " ; "), nil
}

// mergeContextNotes joins the caller's notes with the derived history line.
func mergeContextNotes(notes, history string) string {
	notes = strings.TrimSpace(notes)
	history = strings.TrimSpace(history)
	switch {
	case notes == "":
		return history
	case history == "":
		return notes
	default:
		return notes + " | " + history
	}
}

// eligibleCardIDs narrows a requested card list down to cards the user holds
// and has active, deduplicated, preserving request order. An empty request
// means every active card.
func eligibleCardIDs(requested []int64, active []model.Card) []int64 {
	activeSet := make(map[int64]bool, len(active))
	for _, c := range active {
		activeSet[c.ID] = true
	}

	if len(requested) == 0 {
		ids := make([]int64, 0, len(active))
		for _, c := range active {
			ids = append(ids, c.ID)
		}
		return ids
	}

	seen := make(map[int64]bool, len(requested))
	ids := make([]int64, 0, len(requested))
	for _, id := range requested {
		if activeSet[id] && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func containsCard(cards []model.Card, id int64) bool {
	for _, c := range cards {
		if c.ID == id {
			return true
		}
	}
	return false
}

// suggestedCardID extracts the winning card from a ranking response,
// tolerating both response shapes the backend has used.
func suggestedCardID(rec *Recommendation) *int64 {
	if rec.BestCard != nil {
		if rec.BestCard.ID != 0 {
			id := rec.BestCard.ID
			return &id
		}
		if rec.BestCard.CardID != 0 {
			id := rec.BestCard.CardID
			return &id
		}
	}
	if rec.BestOption != nil {
		if rec.BestOption.CardID != 0 {
			id := rec.BestOption.CardID
			return &id
		}
		if rec.BestOption.ID != 0 {
			id := rec.BestOption.ID
			return &id
		}
	}
	return nil
}

// potentialSavings is the gap between the best card's estimated value and the
// value of the card actually used, floored at zero.
func potentialSavings(rec *Recommendation, actualCardID int64) float64 {
	optimal := 0.0
	if rec.BestCard != nil && rec.BestCard.Rewards != nil {
		optimal = rec.BestCard.Rewards.EstimatedValue
	}
	actual := 0.0
	for _, row := range rec.ComparisonTable {
		if row.CardID == actualCardID {
			actual = row.EstimatedValue
			break
		}
	}
	if optimal <= actual {
		return 0
	}
	return optimal - actual
}
