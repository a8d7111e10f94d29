package api

import (
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/voxnotes/internal/apperr"
	"github.com/starford/voxnotes/internal/models"
	"github.com/starford/voxnotes/internal/storage"
)

// URL prefixes under which artifacts are served.
const (
	notesPrefix    = "/outputs/notes/"
	audioPrefix    = "/outputs/audio/"
	downloadPrefix = "/download_audio/"
)

// ArtifactHandler serves note artifacts from the output directory.
type ArtifactHandler struct {
	files storage.Provider
}

// NewArtifactHandler creates a handler resolving names through files.
func NewArtifactHandler(files storage.Provider) *ArtifactHandler {
	return &ArtifactHandler{files: files}
}

// Note handles GET /outputs/notes/{filename} as a download.
func (h *ArtifactHandler) Note(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, models.ArtifactNotes, true)
}

// Audio handles GET /outputs/audio/{filename} for inline playback.
func (h *ArtifactHandler) Audio(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, models.ArtifactAudio, false)
}

// DownloadAudio handles GET /download_audio/{filename} as a download.
func (h *ArtifactHandler) DownloadAudio(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, models.ArtifactAudio, true)
}

func (h *ArtifactHandler) serve(w http.ResponseWriter, r *http.Request, kind models.ArtifactKind, attachment bool) {
	filename := chi.URLParam(r, "filename")
	if strings.HasPrefix(filename, ".") {
		writeJSON(w, http.StatusBadRequest, errorBody(apperr.KindValidation, "invalid filename"))
		return
	}
	abs, err := h.files.Path(kind, filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(apperr.KindValidation, "invalid filename"))
		return
	}
	info, statErr := os.Stat(abs)
	if statErr != nil || info.IsDir() {
		writeJSON(w, http.StatusNotFound, errorBody(apperr.KindNotFound, "not found"))
		return
	}
	if attachment {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
	http.ServeFile(w, r, abs)
}
