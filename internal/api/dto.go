package api

import (
	"github.com/starford/voxnotes/internal/models"
	"github.com/starford/voxnotes/internal/noteservice"
)

// SaveNoteRequest is the request body for finalizing a temp recording.
type SaveNoteRequest struct {
	TempFilename string `json:"temp_filename" example:"tmp-20240102030405-1a2b3c4d.webm" validate:"required"`
	CustomName   string `json:"custom_name" example:"Standup notes" validate:"required"`
	Category     string `json:"category" example:"Work"`
	OrigText     string `json:"orig_text"`
	EnText       string `json:"en_text"`
	Language     string `json:"language" example:"hindi"`
}

// SaveNoteResponse links the artifacts of a finalized note.
type SaveNoteResponse struct {
	Success   bool   `json:"success"`
	Filename  string `json:"filename" example:"Standup-notes"`
	Category  string `json:"category" example:"Work"`
	TxtFile   string `json:"txt_file" example:"/outputs/notes/20240102030405_Standup-notes.txt"`
	DocxFile  string `json:"docx_file" example:"/outputs/notes/20240102030405_Standup-notes.docx"`
	AudioFile string `json:"audio_file" example:"/outputs/audio/20240102030405_Standup-notes.webm"`
}

// UploadResponse is the transcription of a temp recording (aliased from the domain layer).
type UploadResponse = noteservice.UploadResult

// NoteListResponse wraps a filtered note listing. Categories is omitted when
// the store cannot hold categories.
type NoteListResponse struct {
	Notes      []models.Note `json:"notes" validate:"required"`
	Categories []string      `json:"categories,omitempty"`
}

// DeleteResponse lists the artifacts that were removed.
type DeleteResponse struct {
	Success bool     `json:"success"`
	Deleted []string `json:"deleted" validate:"required"`
}

// RenameResponse maps each renamed artifact kind to its new name.
type RenameResponse struct {
	Success bool              `json:"success"`
	Renamed map[string]string `json:"renamed" validate:"required"`
}
