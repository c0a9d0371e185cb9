package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mdhv11/cardwiz/config"
	"github.com/mdhv11/cardwiz/middleware"
	"github.com/mdhv11/cardwiz/service"
)

const callbackSecretHeader = "X-CALLBACK-SECRET"

type CallbackHandler struct {
	ingestion *service.IngestionService
	secret    string
}

func NewCallbackHandler(ingestion *service.IngestionService, aiCfg *config.AIConfig) *CallbackHandler {
	return &CallbackHandler{
		ingestion: ingestion,
		secret:    aiCfg.CallbackSecret,
	}
}

type callbackRequest struct {
	DocumentID int64  `json:"documentId"`
	CardID     int64  `json:"cardId"`
	Status     string `json:"status"`
	AISummary  string `json:"aiSummary"`
	Error      string `json:"error"`
}

// HandleIngestionCallback receives the terminal status of an asynchronous
// ingestion job from the analysis backend. Any status other than COMPLETED is
// treated as a failure; duplicate deliveries re-apply the same transition.
func (h *CallbackHandler) HandleIngestionCallback(c *gin.Context) {
	provided := c.GetHeader(callbackSecretHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid callback secret"})
		return
	}

	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid callback payload"})
		return
	}
	if req.DocumentID == 0 || req.CardID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "documentId and cardId are required"})
		return
	}

	ctx := c.Request.Context()
	if strings.EqualFold(req.Status, "COMPLETED") {
		if err := h.ingestion.CompleteIngestion(ctx, req.DocumentID, req.CardID, req.AISummary); err != nil {
			respondError(c, err)
			return
		}
	} else {
		slog.Warn("ingestion reported as failed",
			"document_id", req.DocumentID,
			"card_id", req.CardID,
			"status", req.Status,
			"upstream_error", req.Error,
			"request_id", middleware.GetRequestID(c),
		)
		if err := h.ingestion.FailIngestion(ctx, req.DocumentID, req.CardID); err != nil {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Callback applied"})
}
