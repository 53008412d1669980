// Package pipeline runs one generation end to end: extract, prompt, generate,
// parse and render. A run is synchronous and self-contained; the only state shared
// between runs is the results directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mcqgenerator/internal/extract"
	"mcqgenerator/internal/gemini"
	"mcqgenerator/internal/models"
	"mcqgenerator/internal/parser"
	"mcqgenerator/internal/prompts"
	"mcqgenerator/internal/render"
)

// Input rejections. All of them happen before the model is called.
var (
	ErrNoFile             = errors.New("no file part")
	ErrNoSelectedFile     = errors.New("no selected file")
	ErrFileTypeNotAllowed = extract.ErrFileTypeNotAllowed
	ErrMissingFile        = errors.New("invalid or missing file path")
	ErrUnreadableFile     = errors.New("unable to read the file")
	ErrNoUsableText       = errors.New("unable to extract text from the file")
	ErrInvalidCount       = fmt.Errorf("number of items must be between %d and %d", prompts.MinCount, prompts.MaxCount)
)

// ArtifactMirror copies finished artifacts to remote storage and returns their public URL.
type ArtifactMirror interface {
	UploadArtifact(ctx context.Context, runID uuid.UUID, filename string, content io.Reader) (string, error)
}

// RunRecorder keeps a log of completed runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec models.RunRecord) error
}

// FailureNotifier is told when the model call produced no content.
type FailureNotifier interface {
	GenerationFailed(sourceName string, kind models.Kind, sessionID string)
}

// Request is what a caller asks for. FileRef names a previously uploaded file.
type Request struct {
	FileRef   string      `json:"file_path"`
	Count     int         `json:"num_questions"`
	Kind      models.Kind `json:"kind"`
	SessionID string      `json:"-"`
}

// Outcome is the result of a run plus the names of the artifacts it wrote.
type Outcome struct {
	RunID          uuid.UUID               `json:"run_id"`
	Request        Request                 `json:"request"`
	Result         models.GenerationResult `json:"result"`
	Artifacts      models.Artifacts        `json:"artifacts"`
	UpstreamFailed bool                    `json:"upstream_failed"`
	GeneratedAt    time.Time               `json:"generated_at"`
}

// Deps are the collaborators of a Service. Mirror, Runs and Notifier are optional.
type Deps struct {
	Generator gemini.Generator
	Renderer  *render.Renderer
	Mirror    ArtifactMirror
	Runs      RunRecorder
	Notifier  FailureNotifier
}

type Service struct {
	uploadDir  string
	resultsDir string
	prompts    prompts.Builder
	deps       Deps
}

// NewService creates both directories if needed.
func NewService(uploadDir, resultsDir string, deps Deps) (*Service, error) {
	if deps.Generator == nil {
		return nil, errors.New("pipeline: generator is required")
	}
	if deps.Renderer == nil {
		deps.Renderer = render.NewRenderer(render.DefaultConfig())
	}
	for _, dir := range []string{uploadDir, resultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure directory %s: %w", dir, err)
		}
	}
	return &Service{
		uploadDir:  uploadDir,
		resultsDir: resultsDir,
		deps:       deps,
	}, nil
}

// ResultsDir is where artifacts are written.
func (s *Service) ResultsDir() string {
	return s.resultsDir
}

// SaveUpload validates the extension and stores the content under the file's base name.
// An existing upload with the same name is replaced. The returned reference is what
// Run expects in Request.FileRef.
func (s *Service) SaveUpload(filename string, content io.Reader) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", ErrNoSelectedFile
	}
	if _, err := extract.DetectFormat(name); err != nil {
		return "", err
	}

	dst := filepath.Join(s.uploadDir, name)
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create upload %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return "", fmt.Errorf("save upload %s: %w", name, err)
	}
	log.Printf("INFO: Saved upload %s", dst)
	return filepath.Join(filepath.Base(s.uploadDir), name), nil
}

// resolve maps a file reference onto the upload directory. Only the base name is used.
func (s *Service) resolve(ref string) (string, error) {
	name := filepath.Base(strings.TrimSpace(ref))
	if ref == "" || name == "." || name == string(filepath.Separator) {
		return "", ErrMissingFile
	}
	path := filepath.Join(s.uploadDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrMissingFile
	}
	return path, nil
}

// Run executes the whole chain. Input problems return one of the rejection errors and
// leave nothing on disk. A failed model call is not an error: the run completes with
// the failure text as raw output and zero items.
func (s *Service) Run(ctx context.Context, req Request) (*Outcome, error) {
	path, err := s.resolve(req.FileRef)
	if err != nil {
		return nil, err
	}
	format, err := extract.DetectFormat(path)
	if err != nil {
		return nil, err
	}
	count, ok := prompts.ClampCount(req.Count)
	if !ok {
		return nil, ErrInvalidCount
	}
	req.Count = count
	if req.Kind == "" {
		req.Kind = models.KindMCQ
	}

	text, err := extract.File(path, format)
	if err != nil {
		log.Printf("WARN: Extraction failed for %s: %v", filepath.Base(path), err)
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoUsableText
	}

	sourceName := filepath.Base(path)
	log.Printf("INFO: Generating %d %s from %s (%d characters)", count, req.Kind.DisplayName(), sourceName, len(text))

	prompt := s.prompts.Build(text, count, req.Kind)
	raw := s.deps.Generator.Generate(ctx, prompt)
	failed := gemini.IsFailure(raw)
	if failed && s.deps.Notifier != nil {
		s.deps.Notifier.GenerationFailed(sourceName, req.Kind, req.SessionID)
	}

	items, parseErrs := parser.Parse(raw, req.Kind)
	result := models.GenerationResult{
		Kind:        req.Kind,
		Items:       items,
		RawText:     raw,
		ParseErrors: parseErrs,
	}

	outcome := &Outcome{
		RunID:          uuid.New(),
		Request:        req,
		Result:         result,
		UpstreamFailed: failed,
		GeneratedAt:    time.Now().UTC(),
	}
	if err := s.writeArtifacts(ctx, outcome, sourceName); err != nil {
		return nil, err
	}
	log.Printf("INFO: Run %s produced %d items (%d skipped segments) -> %s, %s",
		outcome.RunID, len(items), len(parseErrs), outcome.Artifacts.TextFile, outcome.Artifacts.PDFFile)

	s.recordRun(ctx, outcome, sourceName)
	return outcome, nil
}

func (s *Service) writeArtifacts(ctx context.Context, o *Outcome, sourceName string) error {
	textName, pdfName := render.FileNames(sourceName, o.Result.Kind)
	textPath := filepath.Join(s.resultsDir, textName)
	pdfPath := filepath.Join(s.resultsDir, pdfName)

	if err := s.deps.Renderer.WriteText(textPath, o.Result); err != nil {
		return err
	}
	if err := s.deps.Renderer.WritePDF(pdfPath, o.Result, sourceName); err != nil {
		return err
	}
	o.Artifacts = models.Artifacts{TextFile: textName, PDFFile: pdfName}

	if s.deps.Mirror != nil {
		o.Artifacts.TextURL = s.mirror(ctx, o.RunID, textPath)
		o.Artifacts.PDFURL = s.mirror(ctx, o.RunID, pdfPath)
	}
	return nil
}

// mirror is best effort: a failed upload only loses the public URL.
func (s *Service) mirror(ctx context.Context, runID uuid.UUID, path string) string {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("WARN: Cannot open %s for mirroring: %v", path, err)
		return ""
	}
	defer f.Close()

	url, err := s.deps.Mirror.UploadArtifact(ctx, runID, filepath.Base(path), f)
	if err != nil {
		log.Printf("WARN: Artifact mirror failed for %s: %v", filepath.Base(path), err)
		return ""
	}
	return url
}

func (s *Service) recordRun(ctx context.Context, o *Outcome, sourceName string) {
	if s.deps.Runs == nil {
		return
	}
	rec := models.RunRecord{
		ID:             o.RunID,
		SessionID:      o.Request.SessionID,
		SourceName:     sourceName,
		Kind:           o.Result.Kind,
		RequestedCount: o.Request.Count,
		ItemCount:      len(o.Result.Items),
		ParseErrors:    len(o.Result.ParseErrors),
		UpstreamFailed: o.UpstreamFailed,
		TextFile:       o.Artifacts.TextFile,
		PDFFile:        o.Artifacts.PDFFile,
		CreatedAt:      o.GeneratedAt,
	}
	if err := s.deps.Runs.RecordRun(ctx, rec); err != nil {
		log.Printf("ERROR: Failed to record run %s: %v", o.RunID, err)
	}
}
