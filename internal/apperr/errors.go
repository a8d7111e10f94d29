// Package apperr defines the error kinds shared across the note lifecycle.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for propagation to the HTTP boundary.
type Kind string

// Error kinds.
const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindUnsupportedLanguage Kind = "unsupported_language"
	KindArtifactWrite       Kind = "artifact_write"
	KindPersistence         Kind = "persistence"
	KindStore               Kind = "store"
	KindTranscription       Kind = "transcription"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrArtifactWrite       = errors.New("artifact write error")
	ErrPersistence         = errors.New("persistence error")
	ErrStore               = errors.New("store error")
	ErrTranscription       = errors.New("transcription error")
)

var sentinels = map[Kind]error{
	KindValidation:          ErrValidation,
	KindNotFound:            ErrNotFound,
	KindConflict:            ErrConflict,
	KindUnsupportedLanguage: ErrUnsupportedLanguage,
	KindArtifactWrite:       ErrArtifactWrite,
	KindPersistence:         ErrPersistence,
	KindStore:               ErrStore,
	KindTranscription:       ErrTranscription,
}

// Error carries a kind, a user-facing message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New returns an error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap returns an error of the given kind wrapping err.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k, true
		}
	}
	return "", false
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Msg
	}
	return err.Error()
}

// HTTPStatus maps err to a response status: client input problems are 4xx,
// engine and store failures 5xx.
func HTTPStatus(err error) int {
	kind, _ := KindOf(err)
	switch kind {
	case KindValidation, KindUnsupportedLanguage:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTranscription:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
