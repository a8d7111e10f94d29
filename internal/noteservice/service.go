// Package noteservice implements the note lifecycle: turning uploaded
// recordings into notes and keeping the artifact files and the note row in
// step across rename and delete.
package noteservice

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/voxnotes/internal/apperr"
	"github.com/starford/voxnotes/internal/metrics"
	"github.com/starford/voxnotes/internal/models"
	"github.com/starford/voxnotes/internal/notestore"
	"github.com/starford/voxnotes/internal/render"
	"github.com/starford/voxnotes/internal/storage"
	"github.com/starford/voxnotes/internal/transcriber"
)

// Notifier receives note lifecycle events. *sse.Broker satisfies it.
type Notifier interface {
	PublishNoteEvent(kind string, data map[string]string)
}

// Event kinds passed to the Notifier.
const (
	EventFinalized       = "note.finalized"
	EventRenamed         = "note.renamed"
	EventDeleted         = "note.deleted"
	EventArtifactRemoved = "artifact.removed"
)

const defaultCacheSize = 64

// maxStemAttempts bounds the label-2, label-3, ... retries when a final audio name is taken.
const maxStemAttempts = 20

type listKey struct {
	text     string
	category string
}

// Service coordinates the note store, the artifact files and the speech engine.
type Service struct {
	store    notestore.NoteStore
	files    storage.Provider
	gateway  transcriber.Gateway
	docs     render.DocumentRenderer
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cache    *lru.Cache[listKey, []models.Note]
	// cacheMu guards gen, which advances on every purge. List caches a
	// result only when no purge happened while it was reading the store.
	cacheMu sync.Mutex
	gen     uint64
	now     func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithNotifier sets the receiver of lifecycle events.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics sets the Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRenderer replaces the document renderer.
func WithRenderer(r render.DocumentRenderer) Option {
	return func(s *Service) { s.docs = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCacheSize sets how many list results are cached. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(s *Service) {
		s.cache = nil
		if n > 0 {
			s.cache, _ = lru.New[listKey, []models.Note](n)
		}
	}
}

// NewService creates a note service. gateway may be nil when uploads are not served.
func NewService(store notestore.NoteStore, files storage.Provider, gateway transcriber.Gateway, opts ...Option) *Service {
	cache, _ := lru.New[listKey, []models.Note](defaultCacheSize)
	s := &Service{
		store:   store,
		files:   files,
		gateway: gateway,
		docs:    render.Docx{},
		logger:  slog.Default(),
		cache:   cache,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capabilities returns the column set of the live store.
func (s *Service) Capabilities() models.Capabilities {
	return s.store.Capabilities()
}

func (s *Service) changed(kind string, data map[string]string) {
	s.purge()
	if s.notifier != nil {
		s.notifier.PublishNoteEvent(kind, data)
	}
}

func (s *Service) purge() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gen++
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *Service) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.gen
}

// remember caches notes under key unless a purge happened since gen was read.
func (s *Service) remember(key listKey, notes []models.Note, gen uint64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cache != nil && s.gen == gen {
		s.cache.Add(key, notes)
	}
}

// artifactErr classifies a storage failure.
func artifactErr(msg string, err error) error {
	if errors.Is(err, storage.ErrInvalidName) {
		return apperr.Wrap(apperr.KindValidation, "invalid artifact name", err)
	}
	return apperr.Wrap(apperr.KindArtifactWrite, msg, err)
}
