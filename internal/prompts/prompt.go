package prompts

import (
	"fmt"
	"strings"

	"mcqgenerator/internal/grammar"
	"mcqgenerator/internal/models"
)

const (
	DefaultCount = 5
	MinCount     = 1
	MaxCount     = 20
)

// Builder renders the instruction sent to the model. The output format section is
// taken from the grammar package, never written here by hand.
type Builder struct{}

// Build embeds the full text verbatim; long documents are not truncated or chunked.
func (Builder) Build(text string, count int, kind models.Kind) string {
	if kind == models.KindNote {
		return buildNotes(text, count)
	}
	return buildMCQ(text, count)
}

func buildMCQ(text string, count int) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant helping the user generate multiple-choice questions (MCQs) based on the following text:\n")
	fmt.Fprintf(&b, "'%s'\n", text)
	fmt.Fprintf(&b, "Please generate %d MCQs from the text. Each question should have:\n", count)
	b.WriteString("- A clear question\n")
	fmt.Fprintf(&b, "- Four answer options (labeled %s)\n", strings.Join(models.OptionLabels[:], ", "))
	b.WriteString("- The correct answer clearly indicated by its letter\n")
	b.WriteString("Start every question with its own marker line and keep the fields in this exact order.\n")
	b.WriteString("Format:\n")
	b.WriteString(grammar.Template(models.KindMCQ))
	b.WriteString("\n")
	return b.String()
}

func buildNotes(text string, count int) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant helping the user write concise study notes based on the following text:\n")
	fmt.Fprintf(&b, "'%s'\n", text)
	fmt.Fprintf(&b, "Please write %d short notes that together cover the key ideas of the text. Each note should:\n", count)
	b.WriteString("- Focus on a single concept, definition or fact\n")
	b.WriteString("- Be a few sentences long\n")
	b.WriteString("- Be numbered in order, starting at 1\n")
	b.WriteString("Start every note with its own marker line.\n")
	b.WriteString("Format:\n")
	b.WriteString(grammar.Template(models.KindNote))
	b.WriteString("\n")
	return b.String()
}

// ClampCount applies the default for a zero count and reports whether the value is in range.
func ClampCount(count int) (int, bool) {
	if count == 0 {
		return DefaultCount, true
	}
	return count, count >= MinCount && count <= MaxCount
}
