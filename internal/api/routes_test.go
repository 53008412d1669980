package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"mcqgenerator/internal/api/handlers"
	"mcqgenerator/internal/gemini"
	"mcqgenerator/internal/models"
	"mcqgenerator/internal/pipeline"
)

const twoMCQs = "## MCQ\nQuestion: 2+2?\nA) 3\nB) 4\nC) 5\nD) 6\nCorrect Answer: B\n" +
	"## MCQ\nQuestion: sky color?\nA) red\nB) blue\nC) green\nD) gray\nCorrect Answer: B"

type stubGenerator struct {
	mu      sync.Mutex
	output  string
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.output
}

func (g *stubGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type stubHistory struct {
	runs []models.RunRecord
	err  error
}

func (s stubHistory) ListRuns(_ context.Context, limit int) ([]models.RunRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.runs) > limit {
		return s.runs[:limit], nil
	}
	return s.runs, nil
}

type testServer struct {
	engine  *gin.Engine
	gen     *stubGenerator
	service *pipeline.Service
	cookies []*http.Cookie
}

func setupTestServer(t *testing.T, history handlers.RunLister) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	gen := &stubGenerator{output: twoMCQs}
	service, err := pipeline.NewService(filepath.Join(dir, "uploads"), filepath.Join(dir, "results"), pipeline.Deps{Generator: gen})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	store, err := NewSessionStore("test-secret", nil)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}

	h := handlers.NewHandler(service, pipeline.NewResultCache(pipeline.DefaultResultTTL, pipeline.DefaultMaxResults), history)
	engine := NewRouter(h, store, Options{FrontendURL: "http://localhost:5173", MaxUploadBytes: 1 << 20})
	return &testServer{engine: engine, gen: gen, service: service}
}

// do sends the request with the cookies collected so far and keeps any new ones.
func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if got := rec.Result().Cookies(); len(got) > 0 {
		s.cookies = got
	}
	return rec
}

func (s *testServer) upload(t *testing.T, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	part.Write([]byte(content))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.do(req)
}

func (s *testServer) postJSON(path string, payload any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthHandler(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if ok, exists := body["ok"].(bool); !exists || !ok {
		t.Fatalf("expected ok=true, body=%v", body)
	}
}

func TestUploadRejections(t *testing.T) {
	s := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	rec := s.do(req)
	if rec.Code != http.StatusBadRequest || decode[models.ErrorResponse](t, rec).Error != "No file part" {
		t.Fatalf("missing part: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.upload(t, "", "x")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty filename: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.upload(t, "grades.csv", "a,b,c")
	if rec.Code != http.StatusBadRequest || decode[models.ErrorResponse](t, rec).Error != "File type not allowed" {
		t.Fatalf("csv: %d %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(s.service.ResultsDir()), "uploads", "grades.csv")); !os.IsNotExist(err) {
		t.Fatalf("rejected upload must not be stored")
	}
}

func TestUploadTooLarge(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := s.upload(t, "big.txt", strings.Repeat("x", 2<<20))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestUploadGenerateAndDownload(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := s.upload(t, "Cell Biology.TXT", "Cells are the basic unit of life.")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	uploaded := decode[map[string]string](t, rec)
	if uploaded["file_path"] != filepath.Join("uploads", "Cell Biology.TXT") {
		t.Fatalf("unexpected file_path %q", uploaded["file_path"])
	}

	rec = s.postJSON("/generate_mcqs", map[string]any{"file_path": uploaded["file_path"], "num_questions": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[handlers.GenerateResponse](t, rec)
	if resp.Message != "MCQs generated successfully" || resp.Kind != models.KindMCQ {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.Items) != 2 || resp.Items[0].MCQ.CorrectLabel != "B" || resp.Items[1].MCQ.CorrectLabel != "B" {
		t.Fatalf("unexpected items %+v", resp.Items)
	}
	if resp.TextFile != "generated_mcqs_Cell Biology.txt" || resp.PDFFile != "generated_mcqs_Cell Biology.pdf" {
		t.Fatalf("unexpected artifacts %q %q", resp.TextFile, resp.PDFFile)
	}
	if !strings.Contains(s.gen.prompts[0], "Cells are the basic unit of life.") {
		t.Fatalf("prompt must embed the extracted text")
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/results/"+strings.ReplaceAll(resp.TextFile, " ", "%20"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("download: %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "## MCQ\nQuestion: 2+2?") {
		t.Fatalf("unexpected text artifact %q", rec.Body.String())
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/results/"+strings.ReplaceAll(resp.PDFFile, " ", "%20"), nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatalf("pdf download: %d", rec.Code)
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/results/missing.pdf", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing artifact, got %d", rec.Code)
	}
}

func TestGenerateRejections(t *testing.T) {
	s := setupTestServer(t, nil)
	s.upload(t, "empty.txt", "   \n\t ")
	s.upload(t, "notes.txt", "Photosynthesis converts light into chemical energy.")

	tests := []struct {
		name    string
		path    string
		payload map[string]any
		status  int
		message string
	}{
		{"missing reference", "/generate_mcqs", map[string]any{}, http.StatusBadRequest, "Invalid or missing file path"},
		{"unknown file", "/generate_mcqs", map[string]any{"file_path": "uploads/nope.txt"}, http.StatusBadRequest, "Invalid or missing file path"},
		{"empty text", "/generate_mcqs", map[string]any{"file_path": "uploads/empty.txt"}, http.StatusBadRequest, "Unable to extract text from the file"},
		{"too many", "/generate_mcqs", map[string]any{"file_path": "uploads/notes.txt", "num_questions": 25}, http.StatusBadRequest, "Number of questions must be between 1 and 20"},
		{"bad kind", "/api/generate", map[string]any{"file_path": "uploads/notes.txt", "kind": "essay"}, http.StatusBadRequest, "Unknown kind, expected 'mcq' or 'notes'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.postJSON(tt.path, tt.payload)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d %s", tt.status, rec.Code, rec.Body.String())
			}
			if got := decode[models.ErrorResponse](t, rec).Error; got != tt.message {
				t.Fatalf("expected %q, got %q", tt.message, got)
			}
		})
	}
	if s.gen.calls() != 0 {
		t.Fatalf("model must not be called for rejected requests, got %d calls", s.gen.calls())
	}
}

func TestGenerateNotesKind(t *testing.T) {
	s := setupTestServer(t, nil)
	s.gen.output = "## Note 1\nCells divide.\n## Note 2\nDNA replicates."
	s.upload(t, "bio.txt", "Cells divide. DNA replicates.")

	rec := s.postJSON("/api/generate", map[string]any{"file_path": "uploads/bio.txt", "num_questions": 2, "kind": "notes"})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[handlers.GenerateResponse](t, rec)

	want := []models.GeneratedItem{
		{Note: &models.Note{Index: 1, Body: "Cells divide."}},
		{Note: &models.Note{Index: 2, Body: "DNA replicates."}},
	}
	if diff := cmp.Diff(want, resp.Items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	if resp.Message != "Short Notes generated successfully" || resp.TextFile != "generated_notes_bio.txt" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestUpstreamFailureIsNotAnError(t *testing.T) {
	s := setupTestServer(t, nil)
	s.gen.output = gemini.FailedGeneration
	s.upload(t, "bio.txt", "Some content.")

	rec := s.postJSON("/generate_mcqs", map[string]any{"file_path": "uploads/bio.txt"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[handlers.GenerateResponse](t, rec)
	if !resp.UpstreamFailed || len(resp.Items) != 0 {
		t.Fatalf("expected upstream failure with zero items, got %+v", resp)
	}
}

func TestResultCacheAndRegenerate(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/results", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any generation, got %d", rec.Code)
	}
	rec = s.postJSON("/api/regenerate", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 regenerate without history, got %d", rec.Code)
	}

	s.upload(t, "bio.txt", "Some content.")
	rec = s.postJSON("/api/generate", map[string]any{"file_path": "uploads/bio.txt", "num_questions": 2})
	first := decode[handlers.GenerateResponse](t, rec)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/results", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("results: %d %s", rec.Code, rec.Body.String())
	}
	if cached := decode[handlers.GenerateResponse](t, rec); cached.RunID != first.RunID {
		t.Fatalf("expected cached run %s, got %s", first.RunID, cached.RunID)
	}
	if s.gen.calls() != 1 {
		t.Fatalf("redisplay must not call the model, got %d calls", s.gen.calls())
	}

	rec = s.postJSON("/api/regenerate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("regenerate: %d %s", rec.Code, rec.Body.String())
	}
	second := decode[handlers.GenerateResponse](t, rec)
	if second.RunID == first.RunID || s.gen.calls() != 2 {
		t.Fatalf("regenerate must start a fresh run")
	}
	if s.gen.prompts[0] != s.gen.prompts[1] {
		t.Fatalf("regenerate must reuse the cached request")
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/results", nil))
	if cached := decode[handlers.GenerateResponse](t, rec); cached.RunID != second.RunID {
		t.Fatalf("cache must hold the regenerated run")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	s := setupTestServer(t, nil)
	s.upload(t, "bio.txt", "Some content.")
	s.postJSON("/generate_mcqs", map[string]any{"file_path": "uploads/bio.txt"})

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("a new session must not see another session's results, got %d", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	s := setupTestServer(t, nil)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without database, got %d", rec.Code)
	}

	runs := []models.RunRecord{
		{ID: uuid.New(), SourceName: "a.pdf", Kind: models.KindMCQ, ItemCount: 5, CreatedAt: time.Now().UTC()},
		{ID: uuid.New(), SourceName: "b.docx", Kind: models.KindNote, ItemCount: 3, CreatedAt: time.Now().UTC()},
	}
	s = setupTestServer(t, stubHistory{runs: runs})
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/history?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("history: %d %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string][]models.RunRecord](t, rec)
	if len(body["runs"]) != 1 || body["runs"][0].SourceName != "a.pdf" {
		t.Fatalf("unexpected runs %+v", body["runs"])
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/history?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}

	s = setupTestServer(t, stubHistory{err: errors.New("connection refused")})
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on database error, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := s.do(req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("credentials must be allowed, got %q", got)
	}
}

func TestGenerateRejectsMalformedBody(t *testing.T) {
	s := setupTestServer(t, nil)
	s.upload(t, "notes.txt", "Some content.")

	for _, path := range []string{"/generate_mcqs", "/api/generate"} {
		rec := s.postJSON(path, map[string]any{"file_path": "uploads/notes.txt", "num_questions": "abc"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rec.Code)
		}
		if got := decode[models.ErrorResponse](t, rec).Error; got != "Invalid request body" {
			t.Fatalf("%s: unexpected message %q", path, got)
		}
	}
	if s.gen.calls() != 0 {
		t.Fatalf("model must not be called for a malformed body")
	}
}

func TestRejectedRegenerateKeepsPreviousResult(t *testing.T) {
	s := setupTestServer(t, nil)
	s.upload(t, "bio.txt", "Some content.")
	first := decode[handlers.GenerateResponse](t, s.postJSON("/api/generate", map[string]any{"file_path": "uploads/bio.txt"}))

	// Same name, no usable text: the re-run is rejected before the model call.
	s.upload(t, "bio.txt", "  \n ")
	rec := s.postJSON("/api/regenerate", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected rejected regenerate, got %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/results", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("previous result must survive a rejected regenerate, got %d", rec.Code)
	}
	if cached := decode[handlers.GenerateResponse](t, rec); cached.RunID != first.RunID {
		t.Fatalf("expected run %s, got %s", first.RunID, cached.RunID)
	}
}

func TestDamagedPDFIsRejectedWithJSON(t *testing.T) {
	s := setupTestServer(t, nil)

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	doc.Cell(0, 10, "Lecture notes")
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	data := buf.Bytes()
	off := len(data) / 4
	copy(data[off:off+40], strings.Repeat("x", 40))

	if rec := s.upload(t, "lecture.pdf", string(data)); rec.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	rec := s.postJSON("/generate_mcqs", map[string]any{"file_path": "uploads/lecture.pdf"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
	switch msg := decode[models.ErrorResponse](t, rec).Error; msg {
	case "Unable to read the file", "Unable to extract text from the file":
	default:
		t.Fatalf("unexpected message %q", msg)
	}
	if s.gen.calls() != 0 {
		t.Fatalf("model must not be called for an unreadable pdf")
	}
}
