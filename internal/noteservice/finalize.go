package noteservice

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/voxnotes/internal/apperr"
	"github.com/starford/voxnotes/internal/models"
	"github.com/starford/voxnotes/internal/naming"
	"github.com/starford/voxnotes/internal/render"
)

// FinalizeInput is the user's decision about a temp recording.
type FinalizeInput struct {
	TempName string
	Label    string
	Category string
	OrigText string
	EnText   string
	Language models.Language
}

func (in FinalizeInput) validate() error {
	if strings.TrimSpace(in.TempName) == "" || strings.TrimSpace(in.Label) == "" {
		return apperr.New(apperr.KindValidation, "Missing required data")
	}
	err := validation.ValidateStruct(&in,
		validation.Field(&in.TempName, validation.By(func(any) error {
			if !naming.IsTempName(in.TempName) {
				return errors.New("is not a temporary recording")
			}
			return nil
		})),
		validation.Field(&in.Language, validation.In(
			models.LanguageHindi, models.LanguageEnglish, models.LanguageUnknown)),
	)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid note data", err)
	}
	return nil
}

// normalizeLanguage maps engine codes and names onto a Language. Values it
// does not recognise pass through lowercased so validate rejects them.
func normalizeLanguage(l models.Language) models.Language {
	raw := strings.ToLower(strings.TrimSpace(string(l)))
	if raw == "" {
		return models.LanguageUnknown
	}
	if parsed := models.ParseLanguage(raw); parsed != models.LanguageUnknown {
		return parsed
	}
	return models.Language(raw)
}

// Finalize turns a temp recording into a note: it promotes the audio to its
// final name, writes the text and document artifacts and inserts the row, in
// that order. A failure after promote removes every artifact this call
// created; compensation failures are logged and never replace the original
// error.
func (s *Service) Finalize(ctx context.Context, in FinalizeInput) (note *models.Note, err error) {
	defer func() { s.metrics.Operation("finalize", err) }()

	in.TempName = strings.TrimSpace(in.TempName)
	in.Language = normalizeLanguage(in.Language)
	if err := in.validate(); err != nil {
		return nil, err
	}
	label := naming.SanitizeLabel(in.Label)
	if label == "" {
		return nil, apperr.New(apperr.KindValidation, "custom name must contain a letter or digit")
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = models.DefaultCategory
	}

	now := s.now().UTC()
	names, label, err := s.promote(in.TempName, label, now)
	if err != nil {
		return nil, err
	}

	content := render.Content{Language: in.Language, OrigText: in.OrigText, EnText: in.EnText}
	written := []string{}
	if err := s.files.WriteText(names.Text, render.Text(content)); err != nil {
		s.compensate(names.Audio, written)
		return nil, artifactErr("write text artifact", err)
	}
	written = append(written, names.Text)

	doc, err := s.docs.Render(content)
	if err == nil {
		err = s.files.WriteDocx(names.Docx, doc)
	}
	if err != nil {
		s.compensate(names.Audio, written)
		return nil, artifactErr("write document artifact", err)
	}
	written = append(written, names.Docx)

	input := models.NoteInput{
		Filename:          label,
		Language:          in.Language,
		CreatedAt:         now,
		TranscriptionFile: names.Text,
		DocxFile:          names.Docx,
		AudioFile:         names.Audio,
		OrigText:          in.OrigText,
		EnText:            in.EnText,
		Category:          category,
	}
	id, err := s.store.Insert(ctx, input)
	if err != nil {
		s.compensate(names.Audio, written)
		return nil, apperr.Wrap(apperr.KindPersistence, "save note", err)
	}

	note = s.shape(id, input)
	s.logger.Info("noteservice: note finalized",
		slog.Int64("id", id),
		slog.String("audio", names.Audio),
		slog.String("category", note.Category))
	s.changed(EventFinalized, map[string]string{"audio_file": names.Audio, "filename": label})
	return note, nil
}

// promote moves the temp recording to the first free stem for label.
func (s *Service) promote(tempName, label string, now time.Time) (models.ArtifactNames, string, error) {
	for n := 1; ; n++ {
		try := naming.Disambiguate(label, n)
		names := naming.NamesFor(naming.BuildStem(now, try))
		err := s.files.Promote(tempName, names.Audio)
		switch {
		case err == nil:
			return names, try, nil
		case errors.Is(err, fs.ErrExist) && n < maxStemAttempts:
			continue
		case errors.Is(err, fs.ErrExist):
			return models.ArtifactNames{}, "", apperr.Wrap(apperr.KindConflict, "no free name for this note", err)
		case errors.Is(err, fs.ErrNotExist):
			return models.ArtifactNames{}, "", apperr.Wrap(apperr.KindNotFound,
				"Temporary audio file not found. Please record again.", err)
		default:
			return models.ArtifactNames{}, "", artifactErr("promote recording", err)
		}
	}
}

// compensate removes the promoted audio and the note artifacts written so far.
func (s *Service) compensate(audio string, notes []string) {
	remove := func(kind models.ArtifactKind, name string) {
		_, err := s.files.Delete(kind, name)
		s.metrics.Compensation(err)
		if err != nil {
			s.logger.Error("noteservice: compensation failed",
				slog.String("artifact", name), slog.String("error", err.Error()))
			return
		}
		s.logger.Warn("noteservice: artifact removed after failed finalize", slog.String("artifact", name))
	}
	remove(models.ArtifactAudio, audio)
	for _, name := range notes {
		remove(models.ArtifactNotes, name)
	}
}

// shape returns the note as the live store would report it.
func (s *Service) shape(id int64, in models.NoteInput) *models.Note {
	caps := s.store.Capabilities()
	n := &models.Note{
		ID:                id,
		Filename:          in.Filename,
		Language:          in.Language,
		CreatedAt:         in.CreatedAt,
		TranscriptionFile: in.TranscriptionFile,
		DocxFile:          in.DocxFile,
		AudioFile:         in.AudioFile,
		Category:          models.DefaultCategory,
	}
	if caps.HasTextColumns {
		n.OrigText = in.OrigText
		n.EnText = in.EnText
	}
	if caps.HasCategoryColumn {
		n.Category = in.Category
	}
	return n
}
