package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mdhv11/cardwiz/config"
	"github.com/mdhv11/cardwiz/pkg/cache"
)

// ExtractedRule is one reward rule pulled out of a document by the analysis
// backend. Numeric fields are pointers: absent means the backend did not
// extract a value, which is distinct from zero.
type ExtractedRule struct {
	CardName                  string   `json:"cardName"`
	Category                  string   `json:"category"`
	RewardType                string   `json:"rewardType"`
	RewardRate                *float64 `json:"rewardRate"`
	PointsPerUnit             *float64 `json:"pointsPerUnit"`
	SpendUnit                 *float64 `json:"spendUnit"`
	PointValueRupees          *float64 `json:"pointValueRupees"`
	EffectiveRewardPercentage *float64 `json:"effectiveRewardPercentage"`
	Conditions                string   `json:"conditions"`
}

// Analysis is the result of a synchronous document analysis call.
type Analysis struct {
	AISummary      string          `json:"aiSummary"`
	ExtractedRules []ExtractedRule `json:"extractedRules"`
}

// RecommendationRequest asks the ranking backend which card to use for a
// purchase.
type RecommendationRequest struct {
	UserID            int64   `json:"userId"`
	MerchantName      string  `json:"merchantName"`
	Category          string  `json:"category"`
	TransactionAmount float64 `json:"transactionAmount"`
	Currency          string  `json:"currency"`
	ContextNotes      string  `json:"contextNotes,omitempty"`
	AvailableCardIDs  []int64 `json:"availableCardIds"`
}

// Recommendation is the ranking backend's answer, passed through to clients.
type Recommendation struct {
	BestCard        *RecommendedCard `json:"bestCard,omitempty"`
	BestOption      *RecommendedCard `json:"bestOption,omitempty"`
	Reasoning       string           `json:"reasoning,omitempty"`
	ComparisonTable []ComparisonRow  `json:"comparisonTable,omitempty"`
}

type RecommendedCard struct {
	ID      int64       `json:"id,omitempty"`
	CardID  int64       `json:"cardId,omitempty"`
	Name    string      `json:"name,omitempty"`
	Rewards *CardReward `json:"rewards,omitempty"`
}

type CardReward struct {
	EstimatedValue float64 `json:"estimatedValue"`
	Description    string  `json:"description,omitempty"`
}

type ComparisonRow struct {
	CardID         int64   `json:"cardId"`
	CardName       string  `json:"cardName"`
	EstimatedValue float64 `json:"estimatedValue"`
	Notes          string  `json:"notes,omitempty"`
}

// CoverageEntry reports whether the vector index holds embeddings for a card.
type CoverageEntry struct {
	CardID   int64 `json:"cardId"`
	Embedded bool  `json:"embedded"`
	Count    int   `json:"count"`
}

// MissedSavingsRequest asks the analysis backend to replay a stored statement
// against a set of cards and quantify the rewards left on the table.
type MissedSavingsRequest struct {
	UserID            int64   `json:"userId"`
	StatementS3Key    string  `json:"statementS3Key"`
	ActualCardID      int64   `json:"actualCardId,omitempty"`
	AvailableCardIDs  []int64 `json:"availableCardIds"`
	Bucket            string  `json:"bucket"`
	Currency          string  `json:"currency,omitempty"`
	ContextNotes      string  `json:"contextNotes,omitempty"`
	LimitTransactions int     `json:"limitTransactions,omitempty"`
}

// MissedSavingsReport is the backend's line-by-line verdict. The backend
// emits snake_case here, unlike its other endpoints.
type MissedSavingsReport struct {
	StatementS3Key string                     `json:"statement_s3_key"`
	Summary        *MissedSavingsSummary      `json:"summary,omitempty"`
	Transactions   []MissedSavingsTransaction `json:"transactions,omitempty"`
}

type MissedSavingsSummary struct {
	TransactionsAnalyzed int     `json:"transactions_analyzed"`
	TotalSpend           float64 `json:"total_spend"`
	TotalActualRewards   float64 `json:"total_actual_rewards"`
	TotalOptimalRewards  float64 `json:"total_optimal_rewards"`
	TotalMissedSavings   float64 `json:"total_missed_savings"`
	Currency             string  `json:"currency"`
}

type MissedSavingsTransaction struct {
	Date               string  `json:"date"`
	Merchant           string  `json:"merchant"`
	Amount             float64 `json:"amount"`
	ActualCardID       *int64  `json:"actual_card_id"`
	ActualCardName     string  `json:"actual_card_name"`
	ActualRewardValue  float64 `json:"actual_reward_value"`
	ActualRewardSource string  `json:"actual_reward_source"`
	OptimalCardID      *int64  `json:"optimal_card_id"`
	OptimalCardName    string  `json:"optimal_card_name"`
	OptimalRewardValue float64 `json:"optimal_reward_value"`
	MissedValue        float64 `json:"missed_value"`
}

// AIGateway is the outbound surface of the analysis/ranking backend.
type AIGateway interface {
	AnalyzeDocument(ctx context.Context, documentID int64, s3Key, bucket string) (*Analysis, error)
	GetRecommendation(ctx context.Context, req *RecommendationRequest) (*Recommendation, error)
	SyncEmbedding(ctx context.Context, ruleID int32, cardID int64, contentText string) error
	EmbeddingCoverage(ctx context.Context, cardIDs []int64) ([]CoverageEntry, error)
	AnalyzeStatementMissedSavings(ctx context.Context, req *MissedSavingsRequest) (*MissedSavingsReport, error)
}

// AIClient calls the analysis backend over HTTP. Recommendation responses are
// cached; all other calls go straight through.
type AIClient struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
}

func NewAIClient(cfg *config.AIConfig, c *cache.Cache) *AIClient {
	return &AIClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		cache: c,
	}
}

// AnalyzeDocument submits a stored document for synchronous analysis.
func (c *AIClient) AnalyzeDocument(ctx context.Context, documentID int64, s3Key, bucket string) (*Analysis, error) {
	payload := map[string]any{
		"docId":  documentID,
		"s3Key":  s3Key,
		"bucket": bucket,
	}

	var analysis Analysis
	if err := c.postJSON(ctx, "/ai/v1/documents/analyze", payload, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// GetRecommendation ranks the user's cards for a purchase. Identical requests
// within the cache TTL are served from cache.
func (c *AIClient) GetRecommendation(ctx context.Context, req *RecommendationRequest) (*Recommendation, error) {
	cacheKey := recommendationCacheKey(req)

	var cached Recommendation
	if c.cache.Get(ctx, "aiRecommendationsV2", cacheKey, &cached) {
		return &cached, nil
	}

	var rec Recommendation
	if err := c.postJSON(ctx, "/ai/v1/recommend/rank", req, &rec); err != nil {
		return nil, err
	}

	c.cache.Put(ctx, "aiRecommendationsV2", cacheKey, &rec)
	return &rec, nil
}

// SyncEmbedding pushes one rule's content text into the vector index.
func (c *AIClient) SyncEmbedding(ctx context.Context, ruleID int32, cardID int64, contentText string) error {
	payload := map[string]any{
		"ruleId":      ruleID,
		"cardId":      cardID,
		"contentText": contentText,
	}
	return c.postJSON(ctx, "/ai/v1/embeddings/sync", payload, nil)
}

// EmbeddingCoverage reports index coverage for the given cards.
func (c *AIClient) EmbeddingCoverage(ctx context.Context, cardIDs []int64) ([]CoverageEntry, error) {
	payload := map[string]any{"cardIds": cardIDs}

	var entries []CoverageEntry
	if err := c.postJSON(ctx, "/ai/v1/embeddings/coverage", payload, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AnalyzeStatementMissedSavings replays a stored statement against the given
// cards. Not cached: the statement under a key can be re-uploaded.
func (c *AIClient) AnalyzeStatementMissedSavings(ctx context.Context, req *MissedSavingsRequest) (*MissedSavingsReport, error) {
	var report MissedSavingsReport
	if err := c.postJSON(ctx, "/ai/v1/recommend/statement-missed-savings", req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *AIClient) postJSON(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: failed to encode request: %v", ErrIntegration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", ErrIntegration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request to AI backend failed: %v", ErrIntegration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: AI backend returned %d: %s", ErrIntegration, resp.StatusCode, string(data))
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode AI response: %v", ErrIntegration, err)
	}
	return nil
}

// recommendationCacheKey derives a stable key from the request fields that
// affect the ranking outcome.
func recommendationCacheKey(req *RecommendationRequest) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s|%s|%.2f|%s|%s|", req.UserID,
		strings.ToLower(req.MerchantName), strings.ToLower(req.Category),
		req.TransactionAmount, req.Currency, req.ContextNotes)
	for _, id := range req.AvailableCardIDs {
		fmt.Fprintf(h, "%d,", id)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
