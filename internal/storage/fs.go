package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/voxnotes/internal/models"
	"github.com/starford/voxnotes/internal/naming"
)

// Directory names under the output root.
const (
	AudioDir = "audio"
	NotesDir = "notes"
)

// ErrInvalidName is returned for names that are empty or carry path elements.
var ErrInvalidName = errors.New("storage: invalid artifact name")

// FS implements Provider backed by the local file system.
type FS struct {
	root  string // absolute output directory
	audio string
	notes string
	now   func() time.Time
}

// NewFS creates a provider rooted at the given output directory, creating the
// audio and notes subdirectories. The root must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	f := &FS{
		root:  abs,
		audio: filepath.Join(abs, AudioDir),
		notes: filepath.Join(abs, NotesDir),
		now:   time.Now,
	}
	for _, dir := range []string{f.audio, f.notes} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: mkdir %s: %w", dir, err)
		}
	}
	return f, nil
}

// Root returns the absolute output directory.
func (f *FS) Root() string { return f.root }

// Dir returns the absolute directory holding artifacts of kind.
func (f *FS) Dir(kind models.ArtifactKind) string {
	if kind == models.ArtifactAudio {
		return f.audio
	}
	return f.notes
}

// safePath validates that name is a plain file name and joins it to the
// directory of kind.
func (f *FS) safePath(kind models.ArtifactKind, name string) (string, error) {
	if kind != models.ArtifactAudio && kind != models.ArtifactNotes {
		return "", fmt.Errorf("storage: unknown artifact kind %q", kind)
	}
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`+"\x00") || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	dir := f.Dir(kind)
	abs := filepath.Join(dir, name)
	if filepath.Dir(abs) != dir {
		return "", fmt.Errorf("%w: %q escapes %s", ErrInvalidName, name, kind)
	}
	return abs, nil
}

// WriteTemp stores content under a fresh temp recording name.
func (f *FS) WriteTemp(content []byte) (string, error) {
	name := naming.NewTempName(f.now())
	abs, err := f.safePath(models.ArtifactAudio, name)
	if err != nil {
		return "", err
	}
	// O_EXCL so a suffix collision never clobbers another upload.
	fh, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: create temp %s: %w", name, err)
	}
	if _, err := fh.Write(content); err != nil {
		_ = fh.Close()
		_ = os.Remove(abs)
		return "", fmt.Errorf("storage: write temp %s: %w", name, err)
	}
	if err := fh.Close(); err != nil {
		_ = os.Remove(abs)
		return "", fmt.Errorf("storage: close temp %s: %w", name, err)
	}
	return name, nil
}

// Promote renames the temp recording to finalName within the audio dir.
// It fails with fs.ErrNotExist when the temp file is missing and with
// fs.ErrExist when finalName is already taken.
func (f *FS) Promote(tempName, finalName string) error {
	src, err := f.safePath(models.ArtifactAudio, tempName)
	if err != nil {
		return err
	}
	dst, err := f.safePath(models.ArtifactAudio, finalName)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("storage: promote %s: %w", tempName, err)
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("storage: promote to %s: %w", finalName, fs.ErrExist)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("storage: promote %s: %w", tempName, err)
	}
	return nil
}

// WriteText writes a text artifact.
func (f *FS) WriteText(name string, content []byte) error {
	return f.writeAtomic(models.ArtifactNotes, name, content)
}

// WriteDocx writes a document artifact.
func (f *FS) WriteDocx(name string, content []byte) error {
	return f.writeAtomic(models.ArtifactNotes, name, content)
}

// writeAtomic writes content: tmp file → fsync → rename.
func (f *FS) writeAtomic(kind models.ArtifactKind, name string, content []byte) error {
	abs, err := f.safePath(kind, name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	tmp, err := os.CreateTemp(dir, ".voxnotes-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("storage: chmod: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Rename renames an artifact within its directory.
func (f *FS) Rename(kind models.ArtifactKind, oldName, newName string) (bool, error) {
	absOld, err := f.safePath(kind, oldName)
	if err != nil {
		return false, err
	}
	absNew, err := f.safePath(kind, newName)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(absOld); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if absOld == absNew {
		return true, nil
	}
	if err := os.Rename(absOld, absNew); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("storage: rename %s: %w", oldName, err)
	}
	return true, nil
}

// Delete removes an artifact.
func (f *FS) Delete(kind models.ArtifactKind, name string) (bool, error) {
	abs, err := f.safePath(kind, name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return true, nil
}

// Exists reports whether an artifact is present.
func (f *FS) Exists(kind models.ArtifactKind, name string) (bool, error) {
	abs, err := f.safePath(kind, name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("storage: stat %s: %w", name, err)
	}
	return !info.IsDir(), nil
}

// Path resolves an artifact to its absolute path.
func (f *FS) Path(kind models.ArtifactKind, name string) (string, error) {
	return f.safePath(kind, name)
}

// ListTemp returns temp recordings in the audio dir, oldest first.
func (f *FS) ListTemp() ([]models.TempRecording, error) {
	entries, err := os.ReadDir(f.audio)
	if err != nil {
		return nil, fmt.Errorf("storage: list temp: %w", err)
	}
	var out []models.TempRecording
	for _, e := range entries {
		if e.IsDir() || !naming.IsTempName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("storage: stat %s: %w", e.Name(), err)
		}
		out = append(out, models.TempRecording{
			Name:      e.Name(),
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}
