package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mcqgenerator/internal/grammar"
	"mcqgenerator/internal/models"
)

// Config controls the paginated layout.
type Config struct {
	PageSize   string
	MarginsMM  float64
	FontFamily string
	FontSize   float64
	LineHeight float64
	// SegmentGap is the vertical space left after every segment block.
	SegmentGap float64
}

// DefaultConfig mirrors a plain A4 handout: 12pt Arial, 10mm lines, 5mm between items.
func DefaultConfig() Config {
	return Config{
		PageSize:   "A4",
		MarginsMM:  10,
		FontFamily: "Arial",
		FontSize:   12,
		LineHeight: 10,
		SegmentGap: 5,
	}
}

type Renderer struct {
	cfg Config
}

func NewRenderer(cfg Config) *Renderer {
	return &Renderer{cfg: cfg}
}

// FileNames derives the two artifact names from the upload's base name and the kind.
func FileNames(sourceName string, kind models.Kind) (text, pdf string) {
	base := filepath.Base(sourceName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	prefix := fmt.Sprintf("generated_%s_%s", kind.Slug(), stem)
	return prefix + ".txt", prefix + ".pdf"
}

// Text is the transcript of the model output: segments re-joined with their markers,
// only surrounding whitespace changed. Segments the parser rejected are still included.
func Text(result models.GenerationResult) string {
	return grammar.Join(grammar.Split(result.RawText, result.Kind))
}

// WriteText writes Text(result) to path.
func (r *Renderer) WriteText(path string, result models.GenerationResult) error {
	if err := os.WriteFile(path, []byte(Text(result)), 0o644); err != nil {
		return fmt.Errorf("write text artifact: %w", err)
	}
	return nil
}

// WritePDF lays every segment out as one wrapped block followed by a fixed gap.
// Blocks are written strictly one after another; page breaks inside a block are left
// to the automatic page break.
func (r *Renderer) WritePDF(path string, result models.GenerationResult, sourceName string) error {
	cfg := r.cfg
	pdf := fpdf.New("P", "mm", cfg.PageSize, "")
	pdf.SetMargins(cfg.MarginsMM, cfg.MarginsMM, cfg.MarginsMM)
	pdf.SetAutoPageBreak(true, cfg.MarginsMM+5)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := Title(sourceName, result.Kind)
	pdf.SetTitle(title, true)
	pdf.SetCreator("mcqgenerator", false)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-(cfg.MarginsMM + 5))
		pdf.SetFont(cfg.FontFamily, "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(cfg.FontFamily, "B", cfg.FontSize+4)
	pdf.CellFormat(0, cfg.LineHeight, tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(cfg.SegmentGap)

	for _, seg := range grammar.Split(result.RawText, result.Kind) {
		r.writeSegment(pdf, tr, seg, result.Kind)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (r *Renderer) writeSegment(pdf *fpdf.Fpdf, tr func(string) string, seg grammar.Segment, kind models.Kind) {
	cfg := r.cfg
	text := seg.Text()

	if kind == models.KindNote && seg.Marked() {
		heading := "Note"
		if seg.Heading != "" {
			heading += " " + seg.Heading
		}
		pdf.SetFont(cfg.FontFamily, "B", cfg.FontSize)
		pdf.MultiCell(0, cfg.LineHeight, tr(heading), "", "L", false)
		text = seg.Body
	}

	if text != "" {
		pdf.SetFont(cfg.FontFamily, "", cfg.FontSize)
		pdf.MultiCell(0, cfg.LineHeight, tr(text), "", "L", false)
	}
	pdf.Ln(cfg.SegmentGap)
}

// Title is the heading printed on the first page, e.g. "Generated MCQs - Cell Biology".
func Title(sourceName string, kind models.Kind) string {
	base := filepath.Base(sourceName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	stem = strings.TrimSpace(stem)
	if stem == "" {
		return "Generated " + kind.DisplayName()
	}
	return fmt.Sprintf("Generated %s - %s", kind.DisplayName(), cases.Title(language.English).String(stem))
}
