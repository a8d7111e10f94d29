// Package models defines the domain types for voxnotes.
package models

import (
	"strings"
	"time"
)

// Language is the detected source language of a recording.
type Language string

// Recognised languages.
const (
	LanguageHindi   Language = "hindi"
	LanguageEnglish Language = "english"
	LanguageUnknown Language = "unknown"
)

// DefaultCategory is reported for notes without a stored category.
const DefaultCategory = "Others"

// ParseLanguage maps an engine language code or name to a Language.
// Anything outside hindi/english maps to LanguageUnknown.
func ParseLanguage(code string) Language {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "hi", "hindi":
		return LanguageHindi
	case "en", "english":
		return LanguageEnglish
	default:
		return LanguageUnknown
	}
}

// Supported reports whether recordings in l can be turned into notes.
func (l Language) Supported() bool {
	return l == LanguageHindi || l == LanguageEnglish
}

// Note is one finalized recording with its artifact filenames.
type Note struct {
	ID                int64     `json:"id"`
	Filename          string    `json:"filename"`
	Language          Language  `json:"language"`
	CreatedAt         time.Time `json:"created_at"`
	TranscriptionFile string    `json:"transcription_file"`
	DocxFile          string    `json:"docx_file"`
	AudioFile         string    `json:"audio_file"`
	OrigText          string    `json:"orig_text"`
	EnText            string    `json:"en_text"`
	Category          string    `json:"category"`
}

// NoteInput holds the values written when a note row is created.
// Fields the live schema cannot hold are dropped by the store.
type NoteInput struct {
	Filename          string
	Language          Language
	CreatedAt         time.Time
	TranscriptionFile string
	DocxFile          string
	AudioFile         string
	OrigText          string
	EnText            string
	Category          string
}

// NoteUpdate holds the new artifact names applied by a rename.
// A nil TranscriptionFile or DocxFile is stored as NULL.
type NoteUpdate struct {
	Filename          string
	TranscriptionFile *string
	DocxFile          *string
	AudioFile         string
}

// Capabilities describes the optional columns present in the live notes table.
type Capabilities struct {
	HasTextColumns    bool `json:"has_text_columns"`
	HasCategoryColumn bool `json:"has_category_column"`
}

// FullCapabilities is the shape of a store created by this version.
func FullCapabilities() Capabilities {
	return Capabilities{HasTextColumns: true, HasCategoryColumn: true}
}

// ArtifactKind selects the directory an artifact lives in.
type ArtifactKind string

// Artifact kinds.
const (
	ArtifactAudio ArtifactKind = "audio"
	ArtifactNotes ArtifactKind = "notes"
)

// ArtifactNames is the audio/text/document triple sharing one stem.
type ArtifactNames struct {
	Audio string `json:"audio"`
	Text  string `json:"txt"`
	Docx  string `json:"docx"`
}

// TempRecording is an uploaded recording awaiting finalize.
type TempRecording struct {
	Name      string    `json:"temp_filename"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
