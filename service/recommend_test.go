package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mdhv11/cardwiz/model"
	"github.com/mdhv11/cardwiz/pkg/cache"
)

type fakeTransactionStore struct {
	txs    []model.Transaction
	nextID int64
}

func (s *fakeTransactionStore) ListByUser(ctx context.Context, userID int64) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, tx := range s.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *fakeTransactionStore) FindByID(ctx context.Context, id int64) (*model.Transaction, error) {
	for i := range s.txs {
		if s.txs[i].ID == id {
			cp := s.txs[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeTransactionStore) Create(ctx context.Context, tx *model.Transaction) error {
	s.nextID++
	tx.ID = s.nextID
	s.txs = append(s.txs, *tx)
	return nil
}

func (s *fakeTransactionStore) Update(ctx context.Context, tx *model.Transaction) error {
	for i := range s.txs {
		if s.txs[i].ID == tx.ID {
			s.txs[i] = *tx
		}
	}
	return nil
}

func (s *fakeTransactionStore) Delete(ctx context.Context, id int64) error {
	for i := range s.txs {
		if s.txs[i].ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return nil
		}
	}
	return nil
}

type recordingAIGateway struct {
	fakeAIGateway
	lastRequest    *RecommendationRequest
	response       *Recommendation
	lastMissed     *MissedSavingsRequest
	missedResponse *MissedSavingsReport
}

func (g *recordingAIGateway) GetRecommendation(ctx context.Context, req *RecommendationRequest) (*Recommendation, error) {
	g.lastRequest = req
	if g.response != nil {
		return g.response, nil
	}
	return &Recommendation{}, nil
}

func (g *recordingAIGateway) AnalyzeStatementMissedSavings(ctx context.Context, req *MissedSavingsRequest) (*MissedSavingsReport, error) {
	g.lastMissed = req
	if g.missedResponse != nil {
		return g.missedResponse, nil
	}
	return &MissedSavingsReport{StatementS3Key: req.StatementS3Key}, nil
}

type nullCacheStore struct{}

func (nullCacheStore) Get(ctx context.Context, key string) ([]byte, error) { return nil, cache.ErrMiss }
func (nullCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (nullCacheStore) Del(ctx context.Context, keys ...string) error { return nil }
func (nullCacheStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return nil, nil
}

func testCache() *cache.Cache {
	return cache.New(nullCacheStore{}, "v4", time.Minute, nil)
}

func date(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func newTestRecommend(cards *fakeCardStore, txs *fakeTransactionStore, ai AIGateway) *RecommendationService {
	return NewRecommendationService(cards, txs, ai, &fakeStorage{}, testCache())
}

func TestRecommendNarrowsToActiveCards(t *testing.T) {
	cards := newFakeCardStore(
		model.Card{ID: 1, UserID: 7, CardName: "A", Active: true},
		model.Card{ID: 2, UserID: 7, CardName: "B", Active: true},
		model.Card{ID: 3, UserID: 7, CardName: "C", Active: false},
	)
	ai := &recordingAIGateway{}
	svc := newTestRecommend(cards, &fakeTransactionStore{}, ai)

	_, err := svc.Recommend(context.Background(), 7, &RecommendQuery{
		MerchantName: "Swiggy",
		Amount:       500,
		CardIDs:      []int64{2, 3, 2, 99},
	})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	// Inactive, foreign and duplicate ids are dropped
	if len(ai.lastRequest.AvailableCardIDs) != 1 || ai.lastRequest.AvailableCardIDs[0] != 2 {
		t.Errorf("Expected eligible cards [2], got %v", ai.lastRequest.AvailableCardIDs)
	}
}

func TestRecommendDefaultsToAllActiveCards(t *testing.T) {
	cards := newFakeCardStore(
		model.Card{ID: 1, UserID: 7, CardName: "A", Active: true},
		model.Card{ID: 2, UserID: 7, CardName: "B", Active: true},
	)
	ai := &recordingAIGateway{}
	svc := newTestRecommend(cards, &fakeTransactionStore{}, ai)

	_, err := svc.Recommend(context.Background(), 7, &RecommendQuery{
		MerchantName: "Swiggy",
		Amount:       500,
	})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if len(ai.lastRequest.AvailableCardIDs) != 2 {
		t.Errorf("Expected all active cards, got %v", ai.lastRequest.AvailableCardIDs)
	}
}

func TestRecommendNoEligibleCards(t *testing.T) {
	cards := newFakeCardStore(model.Card{ID: 1, UserID: 7, CardName: "A", Active: false})
	svc := newTestRecommend(cards, &fakeTransactionStore{}, &recordingAIGateway{})

	_, err := svc.Recommend(context.Background(), 7, &RecommendQuery{MerchantName: "Swiggy", Amount: 500})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestRecommendValidation(t *testing.T) {
	cards := newFakeCardStore(model.Card{ID: 1, UserID: 7, Active: true})
	svc := newTestRecommend(cards, &fakeTransactionStore{}, &recordingAIGateway{})

	tests := []struct {
		name  string
		query RecommendQuery
	}{
		{"missing merchant", RecommendQuery{Amount: 100}},
		{"zero amount", RecommendQuery{MerchantName: "Swiggy"}},
		{"negative amount", RecommendQuery{MerchantName: "Swiggy", Amount: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Recommend(context.Background(), 7, &tt.query); !errors.Is(err, ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestRecommendHistoryContext(t *testing.T) {
	cards := newFakeCardStore(model.Card{ID: 1, UserID: 7, CardName: "A", Active: true})
	txs := &fakeTransactionStore{txs: []model.Transaction{
		{ID: 1, UserID: 7, Merchant: "Zomato", Category: "dining", Currency: "INR", Amount: 450, TransactionDate: date("2026-08-01")},
		{ID: 2, UserID: 7, Merchant: "Amazon", Category: "shopping", Currency: "INR", Amount: 1200, TransactionDate: date("2026-08-20")},
		{ID: 3, UserID: 7, Merchant: "", Category: "", Currency: "", Amount: 99, TransactionDate: nil},
	}}
	ai := &recordingAIGateway{}
	svc := newTestRecommend(cards, txs, ai)

	_, err := svc.Recommend(context.Background(), 7, &RecommendQuery{
		MerchantName: "Swiggy",
		Amount:       500,
		ContextNotes: "prefer cashback",
	})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	want := "prefer cashback | " +
		"Amazon:shopping:INR:1200 ; Zomato:dining:INR:450 ; unknown-merchant:general:INR:99"
	if ai.lastRequest.ContextNotes != want {
		t.Errorf("Context mismatch:\n got: %s\nwant: %s", ai.lastRequest.ContextNotes, want)
	}
}

func TestRecommendHistoryCappedAtFive(t *testing.T) {
	cards := newFakeCardStore(model.Card{ID: 1, UserID: 7, CardName: "A", Active: true})
	store := &fakeTransactionStore{}
	for i := 1; i <= 8; i++ {
		d := time.Date(2026, 8, i, 0, 0, 0, 0, time.UTC)
		store.txs = append(store.txs, model.Transaction{
			ID: int64(i), UserID: 7, Merchant: "M", Category: "c", Currency: "INR",
			Amount: float64(i), TransactionDate: &d,
		})
	}
	ai := &recordingAIGateway{}
	svc := newTestRecommend(cards, store, ai)

	_, err := svc.Recommend(context.Background(), 7, &RecommendQuery{MerchantName: "Swiggy", Amount: 10})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	// 8 transactions on file, only the 5 newest make the context
	want := "M:c:INR:8 ; M:c:INR:7 ; M:c:INR:6 ; M:c:INR:5 ; M:c:INR:4"
	if ai.lastRequest.ContextNotes != want {
		t.Errorf("Context mismatch:\n got: %s\nwant: %s", ai.lastRequest.ContextNotes, want)
	}
}

func TestMergeContextNotes(t *testing.T) {
	tests := []struct {
		notes   string
		history string
		want    string
	}{
		{"", "", ""},
		{"notes", "", "notes"},
		{"", "history", "history"},
		{"notes", "history", "notes | history"},
		{"  notes  ", "history", "notes | history"},
	}
	for _, tt := range tests {
		if got := mergeContextNotes(tt.notes, tt.history); got != tt.want {
			t.Errorf("mergeContextNotes(%q, %q): expected %q, got %q", tt.notes, tt.history, tt.want, got)
		}
	}
}

func TestValidate(t *testing.T) {
	cards := newFakeCardStore(
		model.Card{ID: 1, UserID: 7, CardName: "A", Active: true},
		model.Card{ID: 2, UserID: 7, CardName: "B", Active: true},
	)
	txs := &fakeTransactionStore{}
	ai := &recordingAIGateway{response: &Recommendation{
		BestCard:  &RecommendedCard{ID: 1, Rewards: &CardReward{EstimatedValue: 25.0}},
		Reasoning: "card A earns 5% on dining",
		ComparisonTable: []ComparisonRow{
			{CardID: 1, EstimatedValue: 25.0},
			{CardID: 2, EstimatedValue: 10.555},
		},
	}}
	svc := newTestRecommend(cards, txs, ai)

	result, err := svc.Validate(context.Background(), 7, &ValidationQuery{
		MerchantName: "Zomato",
		Category:     "dining",
		Amount:       500,
		Currency:     "INR",
		ActualCardID: 2,
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if result.SuggestedCardID == nil || *result.SuggestedCardID != 1 {
		t.Errorf("Expected suggested card 1, got %v", result.SuggestedCardID)
	}
	if result.PotentialSavings != 14.45 {
		t.Errorf("Expected savings 14.45, got %v", result.PotentialSavings)
	}

	if len(txs.txs) != 1 {
		t.Fatalf("Expected transaction recorded, got %d", len(txs.txs))
	}
	recorded := txs.txs[0]
	if recorded.ActualCardID == nil || *recorded.ActualCardID != 2 {
		t.Errorf("Expected actual card persisted, got %v", recorded.ActualCardID)
	}
	if recorded.PotentialSavings == nil || *recorded.PotentialSavings != 14.45 {
		t.Errorf("Expected savings persisted, got %v", recorded.PotentialSavings)
	}
	if recorded.TransactionDate == nil {
		t.Error("Expected transaction date defaulted")
	}
}

func TestValidateOptimalChoice(t *testing.T) {
	cards := newFakeCardStore(model.Card{ID: 1, UserID: 7, CardName: "A", Active: true})
	ai := &recordingAIGateway{response: &Recommendation{
		BestCard:        &RecommendedCard{ID: 1, Rewards: &CardReward{EstimatedValue: 25.0}},
		ComparisonTable: []ComparisonRow{{CardID: 1, EstimatedValue: 25.0}},
	}}
	svc := newTestRecommend(cards, &fakeTransactionStore{}, ai)

	result, err := svc.Validate(context.Background(), 7, &ValidationQuery{
		MerchantName: "Zomato",
		Amount:       500,
		ActualCardID: 1,
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.PotentialSavings != 0 {
		t.Errorf("Expected zero savings for optimal choice, got %v", result.PotentialSavings)
	}
}

func TestValidateRejectsForeignCard(t *testing.T) {
	cards := newFakeCardStore(model.Card{ID: 1, UserID: 7, CardName: "A", Active: true})
	svc := newTestRecommend(cards, &fakeTransactionStore{}, &recordingAIGateway{})

	_, err := svc.Validate(context.Background(), 7, &ValidationQuery{
		MerchantName: "Zomato",
		Amount:       500,
		ActualCardID: 42,
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected validation error for unheld card, got %v", err)
	}
}

func TestStatementMissedSavings(t *testing.T) {
	cards := newFakeCardStore(
		model.Card{ID: 1, UserID: 7, CardName: "A", Active: true},
		model.Card{ID: 2, UserID: 7, CardName: "B", Active: true},
		model.Card{ID: 3, UserID: 7, CardName: "C", Active: false},
	)
	ai := &recordingAIGateway{missedResponse: &MissedSavingsReport{
		StatementS3Key: "documents/7/stmt.pdf",
		Summary:        &MissedSavingsSummary{TransactionsAnalyzed: 12, TotalMissedSavings: 340.5, Currency: "INR"},
	}}
	svc := newTestRecommend(cards, &fakeTransactionStore{}, ai)

	report, err := svc.StatementMissedSavings(context.Background(), 7, &MissedSavingsQuery{
		StatementS3Key: "documents/7/stmt.pdf",
		ActualCardID:   2,
		Currency:       "INR",
	})
	if err != nil {
		t.Fatalf("StatementMissedSavings failed: %v", err)
	}

	req := ai.lastMissed
	if req.UserID != 7 {
		t.Errorf("Expected user 7 on the request, got %d", req.UserID)
	}
	if req.Bucket != "test-bucket" {
		t.Errorf("Expected storage bucket on the request, got %q", req.Bucket)
	}
	// Only active cards are offered as alternatives
	if len(req.AvailableCardIDs) != 2 || req.AvailableCardIDs[0] != 1 || req.AvailableCardIDs[1] != 2 {
		t.Errorf("Expected active cards [1 2], got %v", req.AvailableCardIDs)
	}
	if report.Summary == nil || report.Summary.TotalMissedSavings != 340.5 {
		t.Errorf("Expected report passed through, got %+v", report.Summary)
	}
}

func TestStatementMissedSavingsValidation(t *testing.T) {
	cards := newFakeCardStore(model.Card{ID: 1, UserID: 7, CardName: "A", Active: true})
	svc := newTestRecommend(cards, &fakeTransactionStore{}, &recordingAIGateway{})

	tests := []struct {
		name  string
		query MissedSavingsQuery
	}{
		{"missing statement key", MissedSavingsQuery{ActualCardID: 1}},
		{"foreign actual card", MissedSavingsQuery{StatementS3Key: "documents/7/stmt.pdf", ActualCardID: 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.StatementMissedSavings(context.Background(), 7, &tt.query); !errors.Is(err, ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}

	noCards := newTestRecommend(newFakeCardStore(), &fakeTransactionStore{}, &recordingAIGateway{})
	if _, err := noCards.StatementMissedSavings(context.Background(), 7, &MissedSavingsQuery{StatementS3Key: "k"}); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected validation error with no active cards, got %v", err)
	}
}

func TestSuggestedCardIDShapes(t *testing.T) {
	tests := []struct {
		name string
		rec  Recommendation
		want int64
	}{
		{"bestCard id", Recommendation{BestCard: &RecommendedCard{ID: 3}}, 3},
		{"bestCard cardId", Recommendation{BestCard: &RecommendedCard{CardID: 4}}, 4},
		{"bestOption cardId", Recommendation{BestOption: &RecommendedCard{CardID: 5}}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := suggestedCardID(&tt.rec)
			if got == nil || *got != tt.want {
				t.Errorf("Expected %d, got %v", tt.want, got)
			}
		})
	}

	if suggestedCardID(&Recommendation{}) != nil {
		t.Error("Expected nil for empty recommendation")
	}
}
