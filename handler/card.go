package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mdhv11/cardwiz/middleware"
	"github.com/mdhv11/cardwiz/model"
	"github.com/mdhv11/cardwiz/service"
)

type CardHandler struct {
	cards     *service.CardService
	ingestion *service.IngestionService
	recommend *service.RecommendationService
}

func NewCardHandler(cards *service.CardService, ingestion *service.IngestionService, recommend *service.RecommendationService) *CardHandler {
	return &CardHandler{
		cards:     cards,
		ingestion: ingestion,
		recommend: recommend,
	}
}

// List returns the user's cards
func (h *CardHandler) List(c *gin.Context) {
	cards, err := h.cards.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

// Get returns one card
func (h *CardHandler) Get(c *gin.Context) {
	cardID, ok := paramID(c, "cardId")
	if !ok {
		return
	}

	card, err := h.cards.Get(c.Request.Context(), middleware.GetUserID(c), cardID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// Create adds a card
func (h *CardHandler) Create(c *gin.Context) {
	var card model.Card
	if err := c.ShouldBindJSON(&card); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid card payload"})
		return
	}

	created, err := h.cards.Create(c.Request.Context(), middleware.GetUserID(c), &card)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Update replaces a card's fields
func (h *CardHandler) Update(c *gin.Context) {
	cardID, ok := paramID(c, "cardId")
	if !ok {
		return
	}

	var card model.Card
	if err := c.ShouldBindJSON(&card); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid card payload"})
		return
	}

	updated, err := h.cards.Update(c.Request.Context(), middleware.GetUserID(c), cardID, &card)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete removes a card
func (h *CardHandler) Delete(c *gin.Context) {
	cardID, ok := paramID(c, "cardId")
	if !ok {
		return
	}

	if err := h.cards.Delete(c.Request.Context(), middleware.GetUserID(c), cardID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Card deleted"})
}

// AnalyzeDocument uploads a document and analyzes it inline. The response
// carries the final status and summary.
func (h *CardHandler) AnalyzeDocument(c *gin.Context) {
	upload, documentType, ok := formUpload(c, "STATEMENT")
	if !ok {
		return
	}

	var forcedCardID *int64
	if raw := c.PostForm("cardId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cardId"})
			return
		}
		forcedCardID = &id
	}

	result, err := h.ingestion.IngestSync(c.Request.Context(), middleware.GetUserID(c), documentType, upload, forcedCardID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AnalyzeDocumentAsync uploads a document for a specific card and hands
// analysis off to the background pipeline. Responds 202 with the job handle.
func (h *CardHandler) AnalyzeDocumentAsync(c *gin.Context) {
	cardID, ok := paramID(c, "cardId")
	if !ok {
		return
	}
	upload, documentType, ok := formUpload(c, "CARD_TNC")
	if !ok {
		return
	}

	result, err := h.ingestion.IngestAsync(c.Request.Context(), middleware.GetUserID(c), cardID, documentType, upload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

// DocumentStatus reports the ingestion status of one document
func (h *CardHandler) DocumentStatus(c *gin.Context) {
	documentID, ok := paramID(c, "documentId")
	if !ok {
		return
	}

	doc, err := h.ingestion.DocumentJobStatus(c.Request.Context(), middleware.GetUserID(c), documentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"documentId": doc.ID,
		"status":     doc.Status,
		"aiSummary":  doc.AISummary,
	})
}

// Recommend ranks the user's cards for a purchase
func (h *CardHandler) Recommend(c *gin.Context) {
	var query service.RecommendQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recommendation payload"})
		return
	}

	rec, err := h.recommend.Recommend(c.Request.Context(), middleware.GetUserID(c), &query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// StatementMissedSavings analyzes an already uploaded statement for rewards
// the user left on the table
func (h *CardHandler) StatementMissedSavings(c *gin.Context) {
	var query service.MissedSavingsQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid missed-savings payload"})
		return
	}

	report, err := h.recommend.StatementMissedSavings(c.Request.Context(), middleware.GetUserID(c), &query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// KnowledgeCoverage reports which active cards have embedded reward rules
func (h *CardHandler) KnowledgeCoverage(c *gin.Context) {
	coverage, err := h.ingestion.KnowledgeCoverage(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coverage": coverage})
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// formUpload pulls the multipart file and document type out of the request.
// Each upload path carries its own default type: loose uploads are treated as
// statements, card-scoped uploads as the card's terms document.
func formUpload(c *gin.Context, defaultType string) (*service.FileUpload, string, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return nil, "", false
	}
	documentType := c.PostForm("documentType")
	if documentType == "" {
		documentType = defaultType
	}

	return &service.FileUpload{
		Filename:    header.Filename,
		Reader:      file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	}, documentType, true
}
