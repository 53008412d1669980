// Package parser turns raw model output into typed items by splitting on the
// literal markers and field labels defined in the grammar package.
package parser

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"mcqgenerator/internal/grammar"
	"mcqgenerator/internal/models"
)

var (
	reNoteIndex = regexp.MustCompile(`^(\d+)\s*[:.)\-]?\s*(.*)$`)
	// reNumberLabel matches a marker line that only numbers the item ("1", "2.", "3)").
	reNumberLabel = regexp.MustCompile(`^\d+\s*[:.)\-]?\s*(.*)$`)
)

// Parse splits raw into segments and converts each one. Malformed segments are skipped
// and reported; they never stop the remaining segments from being parsed. Items keep
// the order in which their markers appear.
func Parse(raw string, kind models.Kind) ([]models.GeneratedItem, []models.ParseError) {
	var (
		items []models.GeneratedItem
		errs  []models.ParseError
	)
	for _, seg := range grammar.Split(raw, kind) {
		if !seg.Marked() {
			errs = append(errs, parseError(seg, "text before first marker"))
			continue
		}

		var (
			item   models.GeneratedItem
			reason string
		)
		if kind == models.KindNote {
			item, reason = parseNote(seg)
		} else {
			item, reason = parseMCQ(seg)
		}
		if reason != "" {
			errs = append(errs, parseError(seg, reason))
			continue
		}
		items = append(items, item)
	}

	for _, e := range errs {
		log.Printf("WARN: Skipping %s segment %d: %s", kind, e.Segment, e.Reason)
	}
	return items, errs
}

func parseError(seg grammar.Segment, reason string) models.ParseError {
	return models.ParseError{Segment: seg.Ordinal, Reason: reason, Text: seg.String()}
}

// parseMCQ cuts the segment at A), B), C), D) and Correct Answer:, each searched after
// the previous one. Everything before A) is the question.
func parseMCQ(seg grammar.Segment) (models.GeneratedItem, string) {
	text := mcqText(seg)

	labels := append(grammar.OptionDelimiters[:], grammar.CorrectAnswerField)
	starts := make([]int, len(labels))
	pos := 0
	for i, label := range labels {
		idx := strings.Index(text[pos:], label)
		if idx < 0 {
			return models.GeneratedItem{}, fmt.Sprintf("missing %q", label)
		}
		starts[i] = pos + idx
		pos = starts[i] + len(label)
	}

	question := strings.TrimSpace(text[:starts[0]])
	question = strings.TrimSpace(strings.TrimPrefix(question, grammar.QuestionField))
	if question == "" {
		return models.GeneratedItem{}, "empty question"
	}

	var mcq models.MCQ
	mcq.Question = question
	for i := range grammar.OptionDelimiters {
		mcq.Options[i] = models.Option{
			Label: models.OptionLabels[i],
			Text:  strings.TrimSpace(text[starts[i]+len(labels[i]) : starts[i+1]]),
		}
	}

	answer := strings.TrimSpace(text[starts[4]+len(grammar.CorrectAnswerField):])
	label, ok := resolveLabel(answer, mcq.Options)
	if !ok {
		return models.GeneratedItem{}, fmt.Sprintf("unrecognised correct answer %q", answer)
	}
	mcq.CorrectLabel = label

	return models.GeneratedItem{MCQ: &mcq}, ""
}

// mcqText drops a bare item number from the marker line ("## MCQ 1") so that the
// question starts at the Question: label. Any other heading is part of the question.
func mcqText(seg grammar.Segment) string {
	m := reNumberLabel.FindStringSubmatch(seg.Heading)
	if m == nil {
		return seg.Text()
	}
	switch rest := m[1]; {
	case rest == "":
		return seg.Body
	case strings.HasPrefix(rest, grammar.QuestionField):
		return grammar.Segment{Heading: rest, Body: seg.Body}.Text()
	default:
		return seg.Text()
	}
}

// resolveLabel accepts "B", "B)", "(b) 4", "**B**" and falls back to matching an option's text.
func resolveLabel(answer string, options [4]models.Option) (string, bool) {
	first := answer
	if nl := strings.IndexByte(first, '\n'); nl >= 0 {
		first = first[:nl]
	}
	s := strings.TrimLeft(strings.TrimSpace(first), "*([ ")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "Option "), "option ")

	if s != "" {
		c := strings.ToUpper(s[:1])
		for _, l := range models.OptionLabels {
			if c != l {
				continue
			}
			if len(s) == 1 || !isLetter(s[1]) {
				return l, true
			}
		}
	}

	for _, o := range options {
		if o.Text != "" && strings.EqualFold(strings.TrimSpace(first), o.Text) {
			return o.Label, true
		}
	}
	return "", false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// parseNote takes the index from the marker line when it starts with a number and
// falls back to the segment's ordinal position.
func parseNote(seg grammar.Segment) (models.GeneratedItem, string) {
	index := seg.Ordinal
	body := seg.Text()

	if m := reNoteIndex.FindStringSubmatch(seg.Heading); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 {
			index = n
			body = strings.TrimSpace(m[2] + "\n" + seg.Body)
		}
	}
	if body == "" {
		return models.GeneratedItem{}, "empty note"
	}

	return models.GeneratedItem{Note: &models.Note{Index: index, Body: body}}, ""
}
