// Package render produces the text and document artifacts of a note.
package render

import (
	"strings"

	"github.com/starford/voxnotes/internal/models"
)

// Content is what both artifacts show.
type Content struct {
	Language models.Language
	OrigText string
	EnText   string
}

// HasTranslation reports whether the translation section is rendered.
func (c Content) HasTranslation() bool {
	return strings.TrimSpace(c.EnText) != ""
}

// Text renders the plain-text artifact.
func Text(c Content) []byte {
	var b strings.Builder
	b.WriteString("Language detected: ")
	b.WriteString(string(c.Language))
	b.WriteString("\n\nOriginal transcription:\n")
	b.WriteString(c.OrigText)
	b.WriteString("\n")
	if c.HasTranslation() {
		b.WriteString("\nEnglish translation:\n")
		b.WriteString(c.EnText)
		b.WriteString("\n")
	}
	return []byte(b.String())
}
