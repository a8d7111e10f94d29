package render

import (
	"bytes"
	"fmt"

	"github.com/gomutex/godocx"
)

// DocumentRenderer renders the document artifact.
type DocumentRenderer interface {
	Render(c Content) ([]byte, error)
}

// Docx renders Office Open XML documents.
type Docx struct{}

// Render builds the document: title heading, detected language, then one
// sub-headed section per transcript.
func (Docx) Render(c Content) ([]byte, error) {
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("render: new document: %w", err)
	}
	if _, err := doc.AddHeading("Voice Note", 1); err != nil {
		return nil, fmt.Errorf("render: heading: %w", err)
	}
	doc.AddParagraph("Language detected: " + string(c.Language))

	if _, err := doc.AddHeading("Original transcription", 2); err != nil {
		return nil, fmt.Errorf("render: heading: %w", err)
	}
	doc.AddParagraph(c.OrigText)

	if c.HasTranslation() {
		if _, err := doc.AddHeading("English translation", 2); err != nil {
			return nil, fmt.Errorf("render: heading: %w", err)
		}
		doc.AddParagraph(c.EnText)
	}

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, fmt.Errorf("render: write document: %w", err)
	}
	return buf.Bytes(), nil
}
