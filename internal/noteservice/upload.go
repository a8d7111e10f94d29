package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/voxnotes/internal/apperr"
	"github.com/starford/voxnotes/internal/models"
)

// UploadResult is a transcribed temp recording awaiting Finalize.
type UploadResult struct {
	OrigText     string          `json:"orig_text"`
	EnText       string          `json:"en_text"`
	Language     models.Language `json:"language"`
	TempFilename string          `json:"temp_filename"`
}

// Upload stores audio as a temp recording and transcribes it. Hindi speech is
// also translated; English speech gets an empty translation. The temp file is
// removed again when the language is unsupported or the engine fails.
func (s *Service) Upload(ctx context.Context, audio []byte) (res *UploadResult, err error) {
	defer func() { s.metrics.Operation("upload", err) }()

	if len(audio) == 0 {
		return nil, apperr.New(apperr.KindValidation, "no audio_data uploaded")
	}
	if s.gateway == nil {
		return nil, apperr.New(apperr.KindTranscription, "transcription engine not configured")
	}
	temp, err := s.files.WriteTemp(audio)
	if err != nil {
		return nil, artifactErr("store uploaded audio", err)
	}

	started := time.Now()
	orig, err := s.gateway.Transcribe(ctx, audio)
	s.metrics.Transcription("transcribe", started, err)
	if err != nil {
		s.dropTemp(temp)
		return nil, transcriptionErr(err)
	}

	lang := models.ParseLanguage(orig.Language)
	if !lang.Supported() {
		s.dropTemp(temp)
		detected := orig.Language
		if detected == "" {
			detected = string(models.LanguageUnknown)
		}
		return nil, apperr.New(apperr.KindUnsupportedLanguage,
			fmt.Sprintf("Language '%s' not supported. Please speak in Hindi or English only.", detected))
	}

	res = &UploadResult{
		OrigText:     strings.TrimSpace(orig.Text),
		Language:     lang,
		TempFilename: temp,
	}
	if lang == models.LanguageHindi {
		started = time.Now()
		tr, err := s.gateway.Translate(ctx, audio)
		s.metrics.Transcription("translate", started, err)
		if err != nil {
			s.dropTemp(temp)
			return nil, transcriptionErr(err)
		}
		res.EnText = strings.TrimSpace(tr.Text)
	}

	s.logger.Info("noteservice: recording transcribed",
		slog.String("temp", temp),
		slog.String("language", string(lang)),
		slog.String("model", s.gateway.Model()))
	return res, nil
}

func (s *Service) dropTemp(name string) {
	if _, err := s.files.Delete(models.ArtifactAudio, name); err != nil {
		s.logger.Warn("noteservice: remove temp recording", slog.String("temp", name), slog.String("error", err.Error()))
	}
}

func transcriptionErr(err error) error {
	if _, ok := apperr.KindOf(err); ok {
		return err
	}
	return apperr.Wrap(apperr.KindTranscription, "transcription engine failed", err)
}
