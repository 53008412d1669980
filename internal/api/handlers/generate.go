package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"mcqgenerator/internal/models"
	"mcqgenerator/internal/pipeline"
)

// GenerateResponse is returned by every endpoint that runs or replays a generation.
type GenerateResponse struct {
	Message        string                 `json:"message"`
	RunID          string                 `json:"run_id"`
	Kind           models.Kind            `json:"kind"`
	TextFile       string                 `json:"text_file"`
	PDFFile        string                 `json:"pdf_file"`
	TextURL        string                 `json:"text_url,omitempty"`
	PDFURL         string                 `json:"pdf_url,omitempty"`
	Items          []models.GeneratedItem `json:"items"`
	ParseErrors    []models.ParseError    `json:"parse_errors,omitempty"`
	UpstreamFailed bool                   `json:"upstream_failed"`
}

func newGenerateResponse(o *pipeline.Outcome) GenerateResponse {
	items := o.Result.Items
	if items == nil {
		items = []models.GeneratedItem{}
	}
	return GenerateResponse{
		Message:        fmt.Sprintf("%s generated successfully", o.Result.Kind.DisplayName()),
		RunID:          o.RunID.String(),
		Kind:           o.Result.Kind,
		TextFile:       o.Artifacts.TextFile,
		PDFFile:        o.Artifacts.PDFFile,
		TextURL:        o.Artifacts.TextURL,
		PDFURL:         o.Artifacts.PDFURL,
		Items:          items,
		ParseErrors:    o.Result.ParseErrors,
		UpstreamFailed: o.UpstreamFailed,
	}
}

// HandleUpload stores a multipart upload (field "file") and returns its reference.
func (h *Handler) HandleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.abortWithError(c, "Upload", err)
			return
		}
		h.abortWithError(c, "Upload", pipeline.ErrNoFile)
		return
	}
	if fileHeader.Filename == "" {
		h.abortWithError(c, "Upload", pipeline.ErrNoSelectedFile)
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.abortWithError(c, "Upload", fmt.Errorf("open upload: %w", err))
		return
	}
	defer src.Close()

	ref, err := h.Pipeline.SaveUpload(fileHeader.Filename, src)
	if err != nil {
		h.abortWithError(c, "Upload", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File uploaded successfully", "file_path": ref})
}

// HandleGenerateMCQs is the single-mode endpoint: it always generates MCQs.
func (h *Handler) HandleGenerateMCQs(c *gin.Context) {
	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortWithError(c, "Generate MCQs", fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}
	req.Kind = models.KindMCQ
	h.generate(c, req)
}

// HandleGenerate accepts a kind selector ("mcq" or "notes") next to the file reference.
func (h *Handler) HandleGenerate(c *gin.Context) {
	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortWithError(c, "Generate", fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}
	kind, err := models.ParseKind(string(req.Kind))
	if err != nil {
		log.Printf("WARN: Generate rejected: %v", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: "Unknown kind, expected 'mcq' or 'notes'"})
		return
	}
	req.Kind = kind
	h.generate(c, req)
}

func (h *Handler) generate(c *gin.Context, req pipeline.Request) {
	req.SessionID = sessionID(c)
	outcome, err := h.Pipeline.Run(c.Request.Context(), req)
	if err != nil {
		h.abortWithError(c, "Generate", err)
		return
	}
	h.Cache.Put(req.SessionID, outcome)
	c.JSON(http.StatusOK, newGenerateResponse(outcome))
}

// HandleGetResults redisplays the session's latest generation without calling the model.
func (h *Handler) HandleGetResults(c *gin.Context) {
	outcome, ok := h.Cache.Get(sessionID(c))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, models.ErrorResponse{Error: "No generated results for this session"})
		return
	}
	c.JSON(http.StatusOK, newGenerateResponse(outcome))
}

// HandleRegenerate runs the session's last request again. The cached result is
// invalidated only once the new run succeeds, so a rejected re-run keeps it.
func (h *Handler) HandleRegenerate(c *gin.Context) {
	sid := sessionID(c)
	previous, ok := h.Cache.Get(sid)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, models.ErrorResponse{Error: "No previous generation to regenerate"})
		return
	}
	log.Printf("INFO: Regenerating run %s for session %s", previous.RunID, sid)

	outcome, err := h.Pipeline.Run(c.Request.Context(), previous.Request)
	if err != nil {
		h.abortWithError(c, "Regenerate", err)
		return
	}
	h.Cache.Invalidate(sid)
	h.Cache.Put(sid, outcome)
	c.JSON(http.StatusOK, newGenerateResponse(outcome))
}

// HandleDownloadResult serves an artifact from the results directory by base name.
func (h *Handler) HandleDownloadResult(c *gin.Context) {
	name := filepath.Base(c.Param("filename"))
	if name == "." || name == string(filepath.Separator) {
		c.AbortWithStatusJSON(http.StatusNotFound, models.ErrorResponse{Error: "File not found"})
		return
	}
	path := filepath.Join(h.Pipeline.ResultsDir(), name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.AbortWithStatusJSON(http.StatusNotFound, models.ErrorResponse{Error: "File not found"})
		return
	}
	c.File(path)
}
