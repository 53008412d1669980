// Package grammar is the output format shared by the prompt builder and the parser.
// Both sides read the markers and field labels from here so that the instructions
// sent to the model and the splitting applied to its answer cannot drift apart.
package grammar

import (
	"strings"

	"mcqgenerator/internal/models"
)

const (
	MCQMarker  = "## MCQ"
	NoteMarker = "## Note"

	QuestionField      = "Question:"
	CorrectAnswerField = "Correct Answer:"
)

// OptionDelimiters introduce the four options, in order.
var OptionDelimiters = [4]string{"A)", "B)", "C)", "D)"}

// Marker returns the top-level marker that opens every segment of the given kind.
func Marker(kind models.Kind) string {
	if kind == models.KindNote {
		return NoteMarker
	}
	return MCQMarker
}

// Template is the literal block the model is asked to repeat once per item.
func Template(kind models.Kind) string {
	if kind == models.KindNote {
		return NoteMarker + " [note number]\n[note text, a few sentences]"
	}
	var b strings.Builder
	b.WriteString(MCQMarker + "\n")
	b.WriteString(QuestionField + " [question]\n")
	for i, d := range OptionDelimiters {
		b.WriteString(d + " [option " + models.OptionLabels[i] + "]\n")
	}
	b.WriteString(CorrectAnswerField + " [correct option letter]")
	return b.String()
}

// Segment is the text between two top-level markers.
// The preamble before the first marker is kept as an unmarked segment.
type Segment struct {
	// Ordinal is the 1-based position among marked segments, 0 for the preamble.
	Ordinal int
	Marker  string
	// Heading is whatever follows the marker on its own line (e.g. the note number).
	Heading string
	// Gap is the whitespace written between the marker and Heading, kept so that
	// String reproduces "## MCQs" and "## MCQ 1" alike.
	Gap  string
	Body string
}

// Marked reports whether the segment was opened by a marker.
func (s Segment) Marked() bool {
	return s.Marker != ""
}

// Text is the segment content without its marker.
func (s Segment) Text() string {
	if s.Heading == "" {
		return s.Body
	}
	if s.Body == "" {
		return s.Heading
	}
	return s.Heading + "\n" + s.Body
}

// String re-attaches the marker, reproducing the segment as the model wrote it
// up to surrounding whitespace.
func (s Segment) String() string {
	if !s.Marked() {
		return s.Body
	}
	var b strings.Builder
	b.WriteString(s.Marker)
	if s.Heading != "" {
		b.WriteString(s.Gap + s.Heading)
	}
	if s.Body != "" {
		b.WriteString("\n" + s.Body)
	}
	return b.String()
}

// Split cuts raw on the marker for kind and drops segments that are blank after trimming.
// Order follows the input and is never changed.
func Split(raw string, kind models.Kind) []Segment {
	marker := Marker(kind)
	parts := strings.Split(raw, marker)

	var segments []Segment
	ordinal := 0
	for i, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if i == 0 {
			segments = append(segments, Segment{Body: strings.TrimSpace(part)})
			continue
		}
		ordinal++
		heading, body := part, ""
		if nl := strings.IndexByte(part, '\n'); nl >= 0 {
			heading, body = part[:nl], part[nl+1:]
		}
		seg := Segment{
			Ordinal: ordinal,
			Marker:  marker,
			Heading: strings.TrimSpace(heading),
			Body:    strings.TrimSpace(body),
		}
		if seg.Heading != "" {
			seg.Gap = heading[:len(heading)-len(strings.TrimLeft(heading, " \t"))]
		}
		segments = append(segments, seg)
	}
	return segments
}

// Join is the inverse of Split modulo whitespace: segments separated by a blank line.
func Join(segments []Segment) string {
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		out = append(out, s.String())
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n\n") + "\n"
}
