package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind selects what a generation request asks the model for.
type Kind string

const (
	KindMCQ  Kind = "mcq"
	KindNote Kind = "notes"
)

// ParseKind accepts the selector values the front ends send ("mcq", "mcqs", "notes", "short notes").
// An empty selector means MCQ, which is what the single-mode endpoint generates.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mcq", "mcqs":
		return KindMCQ, nil
	case "note", "notes", "short notes", "short_notes":
		return KindNote, nil
	default:
		return "", fmt.Errorf("unknown generation kind %q", s)
	}
}

// Slug is the lowercase plural used in artifact filenames.
func (k Kind) Slug() string {
	if k == KindNote {
		return "notes"
	}
	return "mcqs"
}

// DisplayName is used for titles and user-facing messages.
func (k Kind) DisplayName() string {
	if k == KindNote {
		return "Short Notes"
	}
	return "MCQs"
}

// Option labels, in the order they must appear in every MCQ.
var OptionLabels = [4]string{"A", "B", "C", "D"}

// Option is a single labelled answer of an MCQ.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// MCQ is a multiple-choice question with exactly four options.
type MCQ struct {
	Question     string    `json:"question"`
	Options      [4]Option `json:"options"`
	CorrectLabel string    `json:"correct_label"`
}

// Note is a short note; Index is the advisory label taken from the section header.
type Note struct {
	Index int    `json:"index"`
	Body  string `json:"body"`
}

// GeneratedItem holds exactly one of MCQ or Note.
type GeneratedItem struct {
	MCQ  *MCQ  `json:"mcq,omitempty"`
	Note *Note `json:"note,omitempty"`
}

// Kind reports which variant the item carries.
func (i GeneratedItem) Kind() Kind {
	if i.Note != nil {
		return KindNote
	}
	return KindMCQ
}

// ParseError records a segment that could not be turned into an item.
type ParseError struct {
	Segment int    `json:"segment"`
	Reason  string `json:"reason"`
	Text    string `json:"text"`
}

func (e ParseError) Error() string {
	return fmt.Sprintf("segment %d: %s", e.Segment, e.Reason)
}

// GenerationResult is produced once per generation request and discarded after the
// artifacts are written. RawText is the model output the text artifact echoes.
type GenerationResult struct {
	Kind        Kind            `json:"kind"`
	Items       []GeneratedItem `json:"items"`
	RawText     string          `json:"raw_text"`
	ParseErrors []ParseError    `json:"parse_errors,omitempty"`
}

// Artifacts names the two files written for a generation.
type Artifacts struct {
	TextFile string `json:"text_file"`
	PDFFile  string `json:"pdf_file"`
	TextURL  string `json:"text_url,omitempty"`
	PDFURL   string `json:"pdf_url,omitempty"`
}

// RunRecord is one row of the generation run log. It never carries generated content.
type RunRecord struct {
	ID             uuid.UUID `json:"id"`
	SessionID      string    `json:"session_id"`
	SourceName     string    `json:"source_name"`
	Kind           Kind      `json:"kind"`
	RequestedCount int       `json:"requested_count"`
	ItemCount      int       `json:"item_count"`
	ParseErrors    int       `json:"parse_errors"`
	UpstreamFailed bool      `json:"upstream_failed"`
	TextFile       string    `json:"text_file"`
	PDFFile        string    `json:"pdf_file"`
	CreatedAt      time.Time `json:"created_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
