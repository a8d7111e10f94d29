package noteservice

import (
	"context"
	"slices"
	"strings"

	"github.com/starford/voxnotes/internal/models"
)

// List returns notes newest first, filtered by text and category. Results are
// cached until the next mutation.
func (s *Service) List(ctx context.Context, filterText, category string) ([]models.Note, error) {
	key := listKey{text: strings.TrimSpace(filterText), category: strings.TrimSpace(category)}
	if s.cache != nil {
		if notes, ok := s.cache.Get(key); ok {
			return slices.Clone(notes), nil
		}
	}
	gen := s.generation()
	notes, err := s.store.Query(ctx, key.text, key.category)
	if err != nil {
		return nil, err
	}
	s.remember(key, notes, gen)
	return slices.Clone(notes), nil
}

// Categories returns the categories in use; nil when the store has no category column.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.store.Categories(ctx)
}

// Get returns the note keyed by audioFile, or nil.
func (s *Service) Get(ctx context.Context, audioFile string) (*models.Note, error) {
	return s.store.GetByAudioFile(ctx, audioFile)
}
