package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mcqgenerator/internal/models"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HandleHistory lists the latest recorded runs. Requires a database.
func (h *Handler) HandleHistory(c *gin.Context) {
	if h.History == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "Run history is not available"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	runs, err := h.History.ListRuns(c.Request.Context(), limit)
	if err != nil {
		log.Printf("ERROR: Failed to list runs: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load run history"})
		return
	}
	if runs == nil {
		runs = []models.RunRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
