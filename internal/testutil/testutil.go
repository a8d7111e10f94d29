// Package testutil provides shared test helpers for note stores, artifact
// directories and a scripted speech engine.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/starford/voxnotes/internal/notestore"
	"github.com/starford/voxnotes/internal/storage"
	"github.com/starford/voxnotes/internal/transcriber"
)

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// TestDB creates a temporary SQLite note store that is automatically cleaned up.
func TestDB(t *testing.T) *notestore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "voxnotes-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := notestore.Open(context.Background(), dbFile.Name(), Logger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestOutput creates a temporary output directory with audio/ and notes/.
func TestOutput(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, files
}

// FakeGateway is a scripted transcriber.Gateway.
type FakeGateway struct {
	mu sync.Mutex

	Text        string
	Language    string
	Translation string
	Err         error

	Transcribed int
	Translated  int
}

var _ transcriber.Gateway = (*FakeGateway)(nil)

// Transcribe returns the scripted text and language.
func (g *FakeGateway) Transcribe(context.Context, []byte) (*transcriber.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Transcribed++
	if g.Err != nil {
		return nil, g.Err
	}
	return &transcriber.Result{Text: g.Text, Language: g.Language}, nil
}

// Translate returns the scripted translation.
func (g *FakeGateway) Translate(context.Context, []byte) (*transcriber.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Translated++
	if g.Err != nil {
		return nil, g.Err
	}
	return &transcriber.Result{Text: g.Translation, Language: g.Language}, nil
}

// Model names the fake.
func (g *FakeGateway) Model() string { return "fake" }
