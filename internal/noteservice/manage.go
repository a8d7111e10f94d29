package noteservice

import (
	"context"
	"log/slog"
	"strings"

	"github.com/starford/voxnotes/internal/apperr"
	"github.com/starford/voxnotes/internal/models"
	"github.com/starford/voxnotes/internal/naming"
)

// ArtifactRef names a note by its artifact files, the way the UI addresses it.
// Audio is the row key; when Text or Docx is empty it is taken from the row.
type ArtifactRef struct {
	Text  string
	Docx  string
	Audio string
}

func (r ArtifactRef) empty() bool {
	return r.Text == "" && r.Docx == "" && r.Audio == ""
}

// RenameResult lists the artifacts that were renamed, keyed txt/docx/audio.
type RenameResult struct {
	Renamed map[string]string `json:"renamed"`
	Updated int64             `json:"updated"`
}

// DeleteResult lists the artifacts that were removed.
type DeleteResult struct {
	Deleted []string `json:"deleted"`
	Rows    int64    `json:"rows"`
}

// resolve fills missing text/docx names from the row keyed by ref.Audio.
func (s *Service) resolve(ctx context.Context, ref ArtifactRef) (ArtifactRef, error) {
	ref.Text = strings.TrimSpace(ref.Text)
	ref.Docx = strings.TrimSpace(ref.Docx)
	ref.Audio = strings.TrimSpace(ref.Audio)
	if ref.Audio == "" || (ref.Text != "" && ref.Docx != "") {
		return ref, nil
	}
	note, err := s.store.GetByAudioFile(ctx, ref.Audio)
	if err != nil {
		return ref, err
	}
	if note != nil {
		if ref.Text == "" {
			ref.Text = note.TranscriptionFile
		}
		if ref.Docx == "" {
			ref.Docx = note.DocxFile
		}
	}
	return ref, nil
}

type renameStep struct {
	key  string
	kind models.ArtifactKind
	old  string
	new  string
}

// Rename relabels the given artifacts, keeping each timestamp segment, and
// updates the row keyed by the old audio name. Absent artifacts are skipped;
// their columns are recorded as NULL. The audio column always receives the
// relabelled name so the row stays addressable.
func (s *Service) Rename(ctx context.Context, ref ArtifactRef, newName string) (res *RenameResult, err error) {
	defer func() { s.metrics.Operation("rename", err) }()

	if strings.TrimSpace(newName) == "" {
		return nil, apperr.New(apperr.KindValidation, "New name not provided")
	}
	label := naming.SanitizeLabel(newName)
	if label == "" {
		return nil, apperr.New(apperr.KindValidation, "new name must contain a letter or digit")
	}
	if ref, err = s.resolve(ctx, ref); err != nil {
		return nil, err
	}
	if ref.empty() {
		return nil, apperr.New(apperr.KindValidation, "no artifact names provided")
	}

	now := s.now()
	var steps []renameStep
	for _, st := range []renameStep{
		{key: "txt", kind: models.ArtifactNotes, old: ref.Text},
		{key: "docx", kind: models.ArtifactNotes, old: ref.Docx},
		{key: "audio", kind: models.ArtifactAudio, old: ref.Audio},
	} {
		if st.old == "" {
			continue
		}
		st.new = naming.Relabel(st.old, label, now)
		steps = append(steps, st)
	}

	for _, st := range steps {
		if st.new == st.old {
			continue
		}
		taken, err := s.files.Exists(st.kind, st.new)
		if err != nil {
			return nil, artifactErr("check rename target", err)
		}
		if taken {
			return nil, apperr.New(apperr.KindConflict, "an artifact named "+st.new+" already exists")
		}
	}

	res = &RenameResult{Renamed: map[string]string{}}
	for _, st := range steps {
		ok, err := s.files.Rename(st.kind, st.old, st.new)
		if err != nil {
			return nil, artifactErr("rename artifact", err)
		}
		if ok {
			res.Renamed[st.key] = st.new
		}
	}

	if ref.Audio != "" {
		upd := models.NoteUpdate{
			Filename:  label,
			AudioFile: naming.Relabel(ref.Audio, label, now),
		}
		if v, ok := res.Renamed["txt"]; ok {
			upd.TranscriptionFile = &v
		}
		if v, ok := res.Renamed["docx"]; ok {
			upd.DocxFile = &v
		}
		res.Updated, err = s.store.UpdateByAudioFile(ctx, ref.Audio, upd)
		// The files already carry the new names, so listeners refetch even
		// when the row update failed.
		s.changed(EventRenamed, map[string]string{"audio_file": upd.AudioFile, "previous": ref.Audio})
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("noteservice: note renamed",
		slog.String("audio", ref.Audio),
		slog.String("label", label),
		slog.Int("artifacts", len(res.Renamed)),
		slog.Int64("rows", res.Updated))
	return res, nil
}

// Delete removes the given artifacts and the row keyed by the audio name.
// Absent artifacts and a missing row are not errors, so a repeated delete
// succeeds with nothing removed.
func (s *Service) Delete(ctx context.Context, ref ArtifactRef) (res *DeleteResult, err error) {
	defer func() { s.metrics.Operation("delete", err) }()

	if ref, err = s.resolve(ctx, ref); err != nil {
		return nil, err
	}
	if ref.empty() {
		return nil, apperr.New(apperr.KindValidation, "no artifact names provided")
	}

	res = &DeleteResult{Deleted: []string{}}
	for _, a := range []struct {
		kind models.ArtifactKind
		name string
	}{
		{models.ArtifactNotes, ref.Text},
		{models.ArtifactNotes, ref.Docx},
		{models.ArtifactAudio, ref.Audio},
	} {
		if a.name == "" {
			continue
		}
		ok, err := s.files.Delete(a.kind, a.name)
		if err != nil {
			return nil, artifactErr("delete artifact", err)
		}
		if ok {
			res.Deleted = append(res.Deleted, a.name)
		}
	}

	if ref.Audio != "" {
		res.Rows, err = s.store.DeleteByAudioFile(ctx, ref.Audio)
		s.changed(EventDeleted, map[string]string{"audio_file": ref.Audio})
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("noteservice: note deleted",
		slog.String("audio", ref.Audio),
		slog.Int("artifacts", len(res.Deleted)),
		slog.Int64("rows", res.Rows))
	return res, nil
}
