package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/mdhv11/cardwiz/config"
	"github.com/mdhv11/cardwiz/model"
)

const asyncAcceptedSummary = "Processing started. AI will update status asynchronously."

// FileUpload carries an uploaded document body through the service layer.
type FileUpload struct {
	Filename    string
	Reader      io.Reader
	Size        int64
	ContentType string
}

// IngestResult is what callers of the ingestion paths get back.
type IngestResult struct {
	DocumentID int64                `json:"documentId"`
	Status     model.DocumentStatus `json:"status"`
	AISummary  string               `json:"aiSummary,omitempty"`
	RuleCount  int                  `json:"ruleCount,omitempty"`
}

// CardCoverage reports whether the vector index knows a card's reward rules.
type CardCoverage struct {
	CardID   int64  `json:"cardId"`
	CardName string `json:"cardName"`
	Embedded bool   `json:"embedded"`
	Count    int    `json:"count"`
}

// IngestionService drives the document ingestion lifecycle: upload, analysis,
// rule fan-out and the status transitions on both the document and the card
// it belongs to.
type IngestionService struct {
	documents DocumentStore
	cards     CardStore
	storage   BlobStorage
	ai        AIGateway
	publisher EventPublisher

	defaultPointValue float64
}

func NewIngestionService(
	documents DocumentStore,
	cards CardStore,
	storage BlobStorage,
	ai AIGateway,
	publisher EventPublisher,
	aiCfg *config.AIConfig,
) *IngestionService {
	return &IngestionService{
		documents:         documents,
		cards:             cards,
		storage:           storage,
		ai:                ai,
		publisher:         publisher,
		defaultPointValue: aiCfg.DefaultPointValue,
	}
}

// IngestSync uploads a document, analyzes it inline and fans the extracted
// rules out to the vector index before marking the document COMPLETED. An
// analysis failure marks the document FAILED and propagates; per-rule
// embedding failures do not fail the ingestion.
func (s *IngestionService) IngestSync(ctx context.Context, userID int64, documentType string, upload *FileUpload, forcedCardID *int64) (*IngestResult, error) {
	if forcedCardID != nil {
		if _, err := s.ownedCard(ctx, userID, *forcedCardID); err != nil {
			return nil, err
		}
	}

	s3Key, err := s.storage.UploadDocument(ctx, userID, upload.Filename, upload.Reader, upload.Size, upload.ContentType)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		UserID:       userID,
		S3Key:        s3Key,
		DocumentType: documentType,
		Status:       model.StatusPending,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	analysis, err := s.ai.AnalyzeDocument(ctx, doc.ID, s3Key, s.storage.Bucket())
	if err != nil {
		if markErr := s.documents.MarkFailed(ctx, doc.ID); markErr != nil {
			slog.Error("failed to mark document failed", "document_id", doc.ID, "error", markErr)
		}
		return nil, err
	}

	synced := s.SyncExtractedRules(ctx, userID, doc.ID, analysis.ExtractedRules, forcedCardID)

	if err := s.documents.MarkCompleted(ctx, doc.ID, analysis.AISummary); err != nil {
		return nil, fmt.Errorf("failed to mark document completed: %w", err)
	}

	return &IngestResult{
		DocumentID: doc.ID,
		Status:     model.StatusCompleted,
		AISummary:  analysis.AISummary,
		RuleCount:  synced,
	}, nil
}

// IngestAsync uploads a document and hands analysis off via the messaging
// backbone. The document and its card move to PROCESSING once the broker has
// acknowledged the event; a failed handoff moves both to FAILED and surfaces
// the error to the caller.
func (s *IngestionService) IngestAsync(ctx context.Context, userID, cardID int64, documentType string, upload *FileUpload) (*IngestResult, error) {
	if _, err := s.ownedCard(ctx, userID, cardID); err != nil {
		return nil, err
	}

	s3Key, err := s.storage.UploadDocument(ctx, userID, upload.Filename, upload.Reader, upload.Size, upload.ContentType)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		UserID:       userID,
		S3Key:        s3Key,
		DocumentType: documentType,
		Status:       model.StatusPending,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}
	if err := s.cards.UpdateDocStatus(ctx, cardID, model.StatusProcessing); err != nil {
		slog.Error("failed to mirror card status", "card_id", cardID, "error", err)
	}

	event := &IngestEvent{
		DocumentID:   doc.ID,
		CardID:       cardID,
		UserID:       userID,
		S3Key:        s3Key,
		BucketName:   s.storage.Bucket(),
		DocumentType: documentType,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.markPairFailed(ctx, doc.ID, cardID)
		return nil, err
	}

	if err := s.documents.UpdateStatus(ctx, doc.ID, model.StatusProcessing); err != nil {
		slog.Error("failed to move document to processing", "document_id", doc.ID, "error", err)
	}

	return &IngestResult{
		DocumentID: doc.ID,
		Status:     model.StatusProcessing,
		AISummary:  asyncAcceptedSummary,
	}, nil
}

// CompleteIngestion applies a successful callback: document and card both go
// COMPLETED. Duplicate callbacks overwrite; last write wins.
func (s *IngestionService) CompleteIngestion(ctx context.Context, documentID, cardID int64, summary string) error {
	if err := s.documents.MarkCompleted(ctx, documentID, summary); err != nil {
		return fmt.Errorf("failed to complete document %d: %w", documentID, err)
	}
	if err := s.cards.UpdateDocStatus(ctx, cardID, model.StatusCompleted); err != nil {
		return fmt.Errorf("failed to complete card %d: %w", cardID, err)
	}
	return nil
}

// FailIngestion applies an unsuccessful callback: document and card both go
// FAILED.
func (s *IngestionService) FailIngestion(ctx context.Context, documentID, cardID int64) error {
	if err := s.documents.MarkFailed(ctx, documentID); err != nil {
		return fmt.Errorf("failed to fail document %d: %w", documentID, err)
	}
	if err := s.cards.UpdateDocStatus(ctx, cardID, model.StatusFailed); err != nil {
		return fmt.Errorf("failed to fail card %d: %w", cardID, err)
	}
	return nil
}

// DocumentJobStatus returns the ingestion status of a document owned by the
// user.
func (s *IngestionService) DocumentJobStatus(ctx context.Context, userID, documentID int64) (*model.Document, error) {
	doc, err := s.documents.FindByIDAndUser(ctx, documentID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document %d", ErrNotFound, documentID)
	}
	return doc, nil
}

// KnowledgeCoverage reports, per active card, whether the vector index holds
// embeddings for it.
func (s *IngestionService) KnowledgeCoverage(ctx context.Context, userID int64) ([]CardCoverage, error) {
	cards, err := s.cards.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	active := make([]model.Card, 0, len(cards))
	ids := make([]int64, 0, len(cards))
	for _, c := range cards {
		if c.Active {
			active = append(active, c)
			ids = append(ids, c.ID)
		}
	}
	if len(active) == 0 {
		return []CardCoverage{}, nil
	}

	entries, err := s.ai.EmbeddingCoverage(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]CoverageEntry, len(entries))
	for _, e := range entries {
		byID[e.CardID] = e
	}

	coverage := make([]CardCoverage, 0, len(active))
	for _, c := range active {
		entry := byID[c.ID]
		coverage = append(coverage, CardCoverage{
			CardID:   c.ID,
			CardName: c.CardName,
			Embedded: entry.Embedded,
			Count:    entry.Count,
		})
	}
	return coverage, nil
}

// SyncExtractedRules fans the extracted rules out to the vector index, one
// embedding per rule. A failure on one rule is logged and does not stop the
// others; the return value counts the rules that synced. Each rule carries a
// deterministic identity derived from its document, position and mapped card,
// so re-analyzing a document upserts rather than duplicates. A forced card
// receives every rule regardless of name matching.
func (s *IngestionService) SyncExtractedRules(ctx context.Context, userID, documentID int64, rules []ExtractedRule, forcedCardID *int64) int {
	if len(rules) == 0 {
		return 0
	}

	var forced *model.Card
	if forcedCardID != nil {
		card, err := s.cards.FindByID(ctx, *forcedCardID)
		if err != nil {
			slog.Error("failed to load forced card for rule sync", "card_id", *forcedCardID, "error", err)
			return 0
		}
		forced = card
	}

	cards, err := s.cards.ListByUser(ctx, userID)
	if err != nil {
		slog.Error("failed to list cards for rule sync", "user_id", userID, "error", err)
		return 0
	}
	active := make([]model.Card, 0, len(cards))
	for _, c := range cards {
		if c.Active {
			active = append(active, c)
		}
	}

	synced := 0
	for i, rule := range rules {
		card := forced
		if card == nil {
			card = matchCard(rule.CardName, active)
		}
		if card == nil {
			slog.Warn("no card to attach rule to, skipping",
				"document_id", documentID, "rule_index", i, "rule_card_name", rule.CardName)
			continue
		}

		ruleID := ruleIdentity(documentID, i, card.ID, rule.Category, rule.RewardType)
		contentText := s.buildRuleContentText(&rule)

		if err := s.ai.SyncEmbedding(ctx, ruleID, card.ID, contentText); err != nil {
			slog.Warn("embedding sync failed for rule",
				"document_id", documentID, "rule_index", i, "card_id", card.ID, "error", err)
			continue
		}
		synced++
	}
	return synced
}

func (s *IngestionService) ownedCard(ctx context.Context, userID, cardID int64) (*model.Card, error) {
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to load card: %w", err)
	}
	if card == nil || card.UserID != userID {
		return nil, fmt.Errorf("%w: card %d", ErrNotFound, cardID)
	}
	return card, nil
}

func (s *IngestionService) markPairFailed(ctx context.Context, documentID, cardID int64) {
	if err := s.documents.MarkFailed(ctx, documentID); err != nil {
		slog.Error("failed to mark document failed", "document_id", documentID, "error", err)
	}
	if err := s.cards.UpdateDocStatus(ctx, cardID, model.StatusFailed); err != nil {
		slog.Error("failed to mark card failed", "card_id", cardID, "error", err)
	}
}

// matchCard resolves which card a rule belongs to by name. The rule's card
// name and each active card's name are compared by case-insensitive
// containment in either direction; if nothing matches, the first active card
// is used so the rule is not lost.
func matchCard(ruleCardName string, active []model.Card) *model.Card {
	if len(active) == 0 {
		return nil
	}

	name := strings.ToLower(strings.TrimSpace(ruleCardName))
	if name != "" && name != "unknown" {
		for i := range active {
			cardName := strings.ToLower(active[i].CardName)
			if strings.Contains(cardName, name) || strings.Contains(name, cardName) {
				return &active[i]
			}
		}
	}
	return &active[0]
}

// buildRuleContentText flattens a rule into the canonical key=value text the
// embedding index stores. Field order and defaults are part of the format;
// semicolons inside conditions are folded to commas so the text stays
// parseable.
func (s *IngestionService) buildRuleContentText(rule *ExtractedRule) string {
	cardName := defaultString(rule.CardName, "unknown")
	category := defaultString(rule.Category, "general")
	rewardType := defaultString(rule.RewardType, "REWARD")
	conditions := strings.ReplaceAll(defaultString(rule.Conditions, "none"), ";", ",")

	rewardRate := "0"
	if rule.RewardRate != nil {
		rewardRate = formatFloat(*rule.RewardRate)
	}

	effective := s.deriveEffectivePct(rule)

	var b strings.Builder
	b.WriteString("card_name=")
	b.WriteString(cardName)
	b.WriteString(";category=")
	b.WriteString(category)
	b.WriteString(";reward_type=")
	b.WriteString(rewardType)
	b.WriteString(";reward_rate=")
	b.WriteString(rewardRate)
	b.WriteString(";points_per_unit=")
	b.WriteString(formatOptionalFloat(rule.PointsPerUnit))
	b.WriteString(";spend_unit=")
	b.WriteString(formatOptionalFloat(rule.SpendUnit))
	b.WriteString(";point_value_rupees=")
	b.WriteString(formatOptionalFloat(rule.PointValueRupees))
	b.WriteString(";effective_reward_percentage=")
	b.WriteString(formatFloat(effective))
	b.WriteString(";conditions=")
	b.WriteString(conditions)
	return b.String()
}

// deriveEffectivePct resolves a rule to a single comparable percentage. An
// explicit positive value from analysis wins. CASHBACK rules use the reward
// rate directly. POINTS rules convert points-per-unit through the point value
// into a percentage of spend, falling back to the configured default point
// value when the document states none. Anything else falls back to the reward
// rate, then to zero.
func (s *IngestionService) deriveEffectivePct(rule *ExtractedRule) float64 {
	if rule.EffectiveRewardPercentage != nil && *rule.EffectiveRewardPercentage > 0 {
		return roundTwoDecimals(*rule.EffectiveRewardPercentage)
	}

	rewardType := strings.ToUpper(defaultString(rule.RewardType, "REWARD"))
	rate := 0.0
	if rule.RewardRate != nil {
		rate = *rule.RewardRate
	}

	switch rewardType {
	case "CASHBACK":
		if rate > 0 {
			return roundTwoDecimals(rate)
		}
	case "POINTS":
		if rule.PointsPerUnit != nil && rule.SpendUnit != nil && *rule.SpendUnit > 0 {
			pointValue := s.defaultPointValue
			if rule.PointValueRupees != nil && *rule.PointValueRupees > 0 {
				pointValue = *rule.PointValueRupees
			}
			if pointValue > 0 {
				return roundTwoDecimals(*rule.PointsPerUnit * pointValue / *rule.SpendUnit * 100)
			}
		}
	}

	if rate > 0 {
		return roundTwoDecimals(rate)
	}
	return 0
}

// roundTwoDecimals rounds half away from zero to two decimal places.
func roundTwoDecimals(v float64) float64 {
	return math.Round(v*100) / 100
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return "null"
	}
	return formatFloat(*v)
}

// ruleIdentity derives the deterministic 32-bit identity of an extracted rule
// from its document, position within that document, mapped card and reward
// classification. The fold replicates the JVM convention the index was
// originally populated with (31-based accumulation over the elements' own
// hashes, with wrapping 32-bit arithmetic) so re-ingested rules land on their
// existing entries. Category and reward type go in exactly as extracted;
// defaulting them here would move re-ingested rules off those entries.
func ruleIdentity(documentID int64, index int, mappedCardID int64, category, rewardType string) int32 {
	h := int32(1)
	h = 31*h + longHash(documentID)
	h = 31*h + int32(index)
	h = 31*h + longHash(mappedCardID)
	h = 31*h + stringHash(category)
	h = 31*h + stringHash(rewardType)
	return h
}

func longHash(v int64) int32 {
	return int32(uint64(v) ^ (uint64(v) >> 32))
}

func stringHash(s string) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(unit)
	}
	return h
}
