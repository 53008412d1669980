package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"mcqgenerator/internal/models"
	"mcqgenerator/internal/pipeline"
)

// SessionIDKey is the gin context key under which the session middleware stores the
// anonymous session id.
const SessionIDKey = "sessionID"

var errInvalidBody = errors.New("invalid request body")

// RunLister reads the generation run log.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error)
}

// Handler contains the API handlers dependencies
type Handler struct {
	Pipeline *pipeline.Service
	Cache    *pipeline.ResultCache
	History  RunLister // nil when no database is configured
}

// NewHandler creates a new Handler. history may be nil.
func NewHandler(p *pipeline.Service, cache *pipeline.ResultCache, history RunLister) *Handler {
	if cache == nil {
		cache = pipeline.NewResultCache(pipeline.DefaultResultTTL, pipeline.DefaultMaxResults)
	}
	return &Handler{
		Pipeline: p,
		Cache:    cache,
		History:  history,
	}
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func sessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}

// rejection maps pipeline input errors onto the status and message the client sees.
func rejection(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, "Invalid request body"
	case errors.Is(err, pipeline.ErrNoFile):
		return http.StatusBadRequest, "No file part"
	case errors.Is(err, pipeline.ErrNoSelectedFile):
		return http.StatusBadRequest, "No selected file"
	case errors.Is(err, pipeline.ErrFileTypeNotAllowed):
		return http.StatusBadRequest, "File type not allowed"
	case errors.Is(err, pipeline.ErrMissingFile):
		return http.StatusBadRequest, "Invalid or missing file path"
	case errors.Is(err, pipeline.ErrUnreadableFile):
		return http.StatusBadRequest, "Unable to read the file"
	case errors.Is(err, pipeline.ErrNoUsableText):
		return http.StatusBadRequest, "Unable to extract text from the file"
	case errors.Is(err, pipeline.ErrInvalidCount):
		return http.StatusBadRequest, "Number of questions must be between 1 and 20"
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "File too large"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (h *Handler) abortWithError(c *gin.Context, action string, err error) {
	status, message := rejection(err)
	if status >= http.StatusInternalServerError {
		log.Printf("ERROR: %s: %v", action, err)
	} else {
		log.Printf("WARN: %s rejected: %v", action, err)
	}
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: message})
}
