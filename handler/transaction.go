package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mdhv11/cardwiz/middleware"
	"github.com/mdhv11/cardwiz/model"
	"github.com/mdhv11/cardwiz/service"
)

type TransactionHandler struct {
	transactions *service.TransactionService
	recommend    *service.RecommendationService
}

func NewTransactionHandler(transactions *service.TransactionService, recommend *service.RecommendationService) *TransactionHandler {
	return &TransactionHandler{
		transactions: transactions,
		recommend:    recommend,
	}
}

// List returns the user's transactions
func (h *TransactionHandler) List(c *gin.Context) {
	txs, err := h.transactions.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// Get returns one transaction
func (h *TransactionHandler) Get(c *gin.Context) {
	txID, ok := paramID(c, "transactionId")
	if !ok {
		return
	}

	tx, err := h.transactions.Get(c.Request.Context(), middleware.GetUserID(c), txID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// Create records a transaction
func (h *TransactionHandler) Create(c *gin.Context) {
	var tx model.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction payload"})
		return
	}

	created, err := h.transactions.Create(c.Request.Context(), middleware.GetUserID(c), &tx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Update replaces a transaction's fields
func (h *TransactionHandler) Update(c *gin.Context) {
	txID, ok := paramID(c, "transactionId")
	if !ok {
		return
	}

	var tx model.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction payload"})
		return
	}

	updated, err := h.transactions.Update(c.Request.Context(), middleware.GetUserID(c), txID, &tx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete removes a transaction
func (h *TransactionHandler) Delete(c *gin.Context) {
	txID, ok := paramID(c, "transactionId")
	if !ok {
		return
	}

	if err := h.transactions.Delete(c.Request.Context(), middleware.GetUserID(c), txID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted"})
}

// Validate checks a purchase against the advisor's pick and records it
func (h *TransactionHandler) Validate(c *gin.Context) {
	var query service.ValidationQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid validation payload"})
		return
	}

	result, err := h.recommend.Validate(c.Request.Context(), middleware.GetUserID(c), &query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
