// Package storage defines the artifact file-system abstraction.
package storage

import "github.com/starford/voxnotes/internal/models"

// Provider manages the file-backed artifacts of notes. Names are plain file
// names; kind selects the directory.
type Provider interface {
	// WriteTemp stores an uploaded recording under a fresh temp name in the audio dir.
	WriteTemp(content []byte) (string, error)
	// Promote renames a temp recording to its final audio name.
	Promote(tempName, finalName string) error
	// WriteText writes (or overwrites) a text artifact in the notes dir.
	WriteText(name string, content []byte) error
	// WriteDocx writes (or overwrites) a document artifact in the notes dir.
	WriteDocx(name string, content []byte) error
	// Rename renames an artifact; reports false without error when oldName is absent.
	Rename(kind models.ArtifactKind, oldName, newName string) (bool, error)
	// Delete removes an artifact; reports false without error when it is absent.
	Delete(kind models.ArtifactKind, name string) (bool, error)
	// Exists reports whether the artifact is present.
	Exists(kind models.ArtifactKind, name string) (bool, error)
	// Path resolves an artifact to an absolute path for serving.
	Path(kind models.ArtifactKind, name string) (string, error)
	// ListTemp returns the temp recordings currently in the audio dir.
	ListTemp() ([]models.TempRecording, error)
}
