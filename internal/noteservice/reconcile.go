package noteservice

import (
	"context"
	"log/slog"

	"github.com/starford/voxnotes/internal/models"
)

// ReconcileReport summarises a Reconcile pass.
type ReconcileReport struct {
	Checked      int `json:"checked"`
	Cleared      int `json:"cleared"`
	MissingAudio int `json:"missing_audio"`
}

// Reconcile clears text/docx columns of rows whose artifacts are gone and
// reports rows whose audio is missing.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	notes, err := s.store.Query(ctx, "", "")
	if err != nil {
		return nil, err
	}
	rep := &ReconcileReport{}
	for _, n := range notes {
		if n.AudioFile == "" {
			continue
		}
		rep.Checked++

		if ok, err := s.present(models.ArtifactAudio, n.AudioFile); err == nil && !ok {
			rep.MissingAudio++
			s.logger.Warn("noteservice: audio artifact missing", slog.String("audio", n.AudioFile))
		}

		txt, txtChanged := s.keepIfPresent(n.TranscriptionFile)
		docx, docxChanged := s.keepIfPresent(n.DocxFile)
		if !txtChanged && !docxChanged {
			continue
		}
		_, err := s.store.UpdateByAudioFile(ctx, n.AudioFile, models.NoteUpdate{
			Filename:          n.Filename,
			TranscriptionFile: txt,
			DocxFile:          docx,
			AudioFile:         n.AudioFile,
		})
		if err != nil {
			return rep, err
		}
		rep.Cleared++
		s.logger.Info("noteservice: cleared missing artifacts",
			slog.String("audio", n.AudioFile),
			slog.Bool("txt", txtChanged),
			slog.Bool("docx", docxChanged))
	}
	if rep.Cleared > 0 {
		s.purge()
	}
	return rep, nil
}

// ArtifactRemoved reacts to an artifact deleted outside the service.
func (s *Service) ArtifactRemoved(kind models.ArtifactKind, name string) {
	s.logger.Info("noteservice: artifact removed externally",
		slog.String("kind", string(kind)), slog.String("name", name))
	s.changed(EventArtifactRemoved, map[string]string{"kind": string(kind), "name": name})
}

func (s *Service) present(kind models.ArtifactKind, name string) (bool, error) {
	ok, err := s.files.Exists(kind, name)
	if err != nil {
		s.logger.Warn("noteservice: check artifact", slog.String("name", name), slog.String("error", err.Error()))
	}
	return ok, err
}

// keepIfPresent returns the column value to keep for a notes artifact and
// whether it differs from the current one.
func (s *Service) keepIfPresent(name string) (*string, bool) {
	if name == "" {
		return nil, false
	}
	ok, err := s.present(models.ArtifactNotes, name)
	if err != nil || ok {
		return &name, false
	}
	return nil, true
}
