// Package watcher reports note artifacts removed from the output directories
// by something other than the service.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/voxnotes/internal/models"
	"github.com/starford/voxnotes/internal/naming"
)

// Dir is one watched artifact directory.
type Dir struct {
	Kind models.ArtifactKind
	Path string
}

// Callbacks receive watcher events. Either may be nil.
type Callbacks struct {
	// Removed is called for each final artifact removed or renamed away.
	Removed func(kind models.ArtifactKind, name string)
	// Settled is called once removals have been quiet for the debounce interval.
	Settled func(ctx context.Context)
}

const defaultDebounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on dirs and processes events until ctx
// is cancelled. Temp recordings and in-flight write files are ignored.
func Watch(ctx context.Context, dirs []Dir, logger *slog.Logger, cb Callbacks, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	kinds := make(map[string]models.ArtifactKind, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(d.Path)
		if err != nil {
			return err
		}
		if err := w.Add(abs); err != nil {
			return err
		}
		kinds[abs] = d.Kind
		logger.Info("watcher: started", slog.String("dir", abs), slog.String("kind", string(d.Kind)))
	}

	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleSettle := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(debounce)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			if cb.Settled != nil {
				cb.Settled(ctx)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			kind, ok := kinds[filepath.Dir(ev.Name)]
			if !ok {
				continue
			}
			name := filepath.Base(ev.Name)
			if !isArtifact(kind, name) {
				continue
			}
			logger.Debug("watcher: artifact removed", slog.String("kind", string(kind)), slog.String("name", name))
			if cb.Removed != nil {
				cb.Removed(kind, name)
			}
			scheduleSettle()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// isArtifact reports whether name is a final artifact of kind.
func isArtifact(kind models.ArtifactKind, name string) bool {
	if strings.HasPrefix(name, ".") || naming.IsTempName(name) {
		return false
	}
	ext := filepath.Ext(name)
	switch kind {
	case models.ArtifactAudio:
		return ext == naming.AudioExt
	case models.ArtifactNotes:
		return ext == naming.TextExt || ext == naming.DocxExt
	}
	return false
}
