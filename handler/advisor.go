package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mdhv11/cardwiz/middleware"
	"github.com/mdhv11/cardwiz/model"
	"github.com/mdhv11/cardwiz/service"
)

type AdvisorHandler struct {
	advisor *service.AdvisorService
}

func NewAdvisorHandler(advisor *service.AdvisorService) *AdvisorHandler {
	return &AdvisorHandler{advisor: advisor}
}

// History returns the user's advisor chat log
func (h *AdvisorHandler) History(c *gin.Context) {
	msgs, err := h.advisor.History(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Append stores one advisor chat message
func (h *AdvisorHandler) Append(c *gin.Context) {
	var msg model.AdvisorMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message payload"})
		return
	}

	created, err := h.advisor.Append(c.Request.Context(), middleware.GetUserID(c), &msg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}
