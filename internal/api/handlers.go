package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/starford/voxnotes/internal/apperr"
	"github.com/starford/voxnotes/internal/models"
	"github.com/starford/voxnotes/internal/noteservice"
)

const maxUploadBytes = 50 << 20 // 50 MB

// Handler holds API route handlers.
type Handler struct {
	svc     *noteservice.Service
	baseURL string
}

// NewHandler creates a new Handler. baseURL prefixes the artifact links in
// responses; empty means host-relative links.
func NewHandler(svc *noteservice.Service, baseURL string) *Handler {
	return &Handler{svc: svc, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (h *Handler) link(prefix, name string) string {
	return h.baseURL + prefix + url.PathEscape(name)
}

// ListNotes handles GET /notes.
//
//	@Summary		List notes newest first, filtered by text and category
//	@Tags			notes
//	@Produce		json
//	@Param			q			query		string	false	"Case-insensitive substring of name or text"
//	@Param			category	query		string	false	"Exact category"
//	@Success		200			{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	notes, err := h.svc.List(r.Context(), q.Get("q"), q.Get("category"))
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	cats, err := h.svc.Categories(r.Context())
	if err != nil {
		writeError(w, "list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Categories: cats})
}

// UploadAudio handles POST /upload_audio (multipart/form-data, field "audio_data").
//
//	@Summary		Store a recording as a temp file and transcribe it
//	@Tags			notes
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			audio_data	formData	file	true	"Recorded audio"
//	@Success		200			{object}	UploadResponse
//	@Failure		400			{object}	errResponse
//	@Failure		502			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/upload_audio [post]
func (h *Handler) UploadAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logDecodeErr(err)
		writeJSON(w, http.StatusBadRequest, errorBody(apperr.KindValidation, "file too large or invalid multipart"))
		return
	}
	file, _, err := r.FormFile("audio_data")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(apperr.KindValidation, "no audio_data uploaded"))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(apperr.KindValidation, "failed to read audio_data"))
		return
	}
	res, err := h.svc.Upload(r.Context(), audio)
	if err != nil {
		writeError(w, "upload audio", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SaveNote handles POST /save_note.
//
//	@Summary		Finalize a temp recording into a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SaveNoteRequest	true	"Note to save"
//	@Success		200		{object}	SaveNoteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/save_note [post]
func (h *Handler) SaveNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req SaveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logDecodeErr(err)
		writeJSON(w, http.StatusBadRequest, errorBody(apperr.KindValidation, "invalid JSON body"))
		return
	}
	note, err := h.svc.Finalize(r.Context(), noteservice.FinalizeInput{
		TempName: req.TempFilename,
		Label:    req.CustomName,
		Category: req.Category,
		OrigText: req.OrigText,
		EnText:   req.EnText,
		Language: models.Language(req.Language),
	})
	if err != nil {
		writeError(w, "save note", err)
		return
	}
	writeJSON(w, http.StatusOK, SaveNoteResponse{
		Success:   true,
		Filename:  note.Filename,
		Category:  note.Category,
		TxtFile:   h.link(notesPrefix, note.TranscriptionFile),
		DocxFile:  h.link(notesPrefix, note.DocxFile),
		AudioFile: h.link(audioPrefix, note.AudioFile),
	})
}

func artifactRef(r *http.Request) noteservice.ArtifactRef {
	q := r.URL.Query()
	return noteservice.ArtifactRef{Text: q.Get("txt"), Docx: q.Get("docx"), Audio: q.Get("audio")}
}

// DeleteNote handles DELETE /delete_note.
//
//	@Summary		Delete a note's artifacts and row
//	@Tags			notes
//	@Produce		json
//	@Param			txt		query		string	false	"Text artifact"
//	@Param			docx	query		string	false	"Document artifact"
//	@Param			audio	query		string	false	"Audio artifact (row key)"
//	@Success		200		{object}	DeleteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/delete_note [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Delete(r.Context(), artifactRef(r))
	if err != nil {
		writeError(w, "delete note", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true, Deleted: res.Deleted})
}

// RenameNote handles PUT /rename_note.
//
//	@Summary		Rename a note's artifacts keeping their timestamps
//	@Tags			notes
//	@Produce		json
//	@Param			txt			query		string	false	"Text artifact"
//	@Param			docx		query		string	false	"Document artifact"
//	@Param			audio		query		string	false	"Audio artifact (row key)"
//	@Param			new_name	query		string	true	"New label"
//	@Success		200			{object}	RenameResponse
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rename_note [put]
func (h *Handler) RenameNote(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Rename(r.Context(), artifactRef(r), r.URL.Query().Get("new_name"))
	if err != nil {
		writeError(w, "rename note", err)
		return
	}
	writeJSON(w, http.StatusOK, RenameResponse{Success: true, Renamed: res.Renamed})
}

// Capabilities handles GET /capabilities.
//
//	@Summary		Report which optional columns the note store carries
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	models.Capabilities
//	@Security		BearerAuth
//	@Router			/capabilities [get]
func (h *Handler) Capabilities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Capabilities())
}

func logDecodeErr(err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		slog.Warn("request body too large", slog.Int64("limit", maxErr.Limit))
	}
}
