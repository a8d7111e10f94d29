package notestore

import (
	"context"

	"github.com/starford/voxnotes/internal/models"
)

// NoteStore defines the persistence operations of the note lifecycle.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type NoteStore interface {
	Capabilities() models.Capabilities
	Insert(ctx context.Context, in models.NoteInput) (int64, error)
	Query(ctx context.Context, filterText, category string) ([]models.Note, error)
	GetByAudioFile(ctx context.Context, audioFile string) (*models.Note, error)
	UpdateByAudioFile(ctx context.Context, audioFile string, upd models.NoteUpdate) (int64, error)
	DeleteByAudioFile(ctx context.Context, audioFile string) (int64, error)
	Categories(ctx context.Context) ([]string, error)
	Close() error
}

// Verify *DB satisfies NoteStore at compile time.
var _ NoteStore = (*DB)(nil)
