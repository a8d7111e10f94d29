package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/voxnotes/internal/noteservice"
	"github.com/starford/voxnotes/internal/storage"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// BaseURL prefixes artifact links in save_note responses.
	BaseURL string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
}

// NewRouter creates a chi router with all note routes mounted.
func NewRouter(svc *noteservice.Service, files storage.Provider, opts RouterOptions) chi.Router {
	h := NewHandler(svc, opts.BaseURL)
	ah := NewArtifactHandler(files)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))

	// Note lifecycle.
	r.Get("/notes", h.ListNotes)
	r.Post("/upload_audio", h.UploadAudio)
	r.Post("/save_note", h.SaveNote)
	r.Delete("/delete_note", h.DeleteNote)
	r.Put("/rename_note", h.RenameNote)
	r.Get("/capabilities", h.Capabilities)

	// Artifacts.
	r.Get(notesPrefix+"{filename}", ah.Note)
	r.Get(audioPrefix+"{filename}", ah.Audio)
	r.Get(downloadPrefix+"{filename}", ah.DownloadAudio)

	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
	}

	return r
}
