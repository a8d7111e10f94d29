package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsSentinel(t *testing.T) {
	err := Wrap(KindPersistence, "insert note", errors.New("disk full"))
	if !errors.Is(err, ErrPersistence) {
		t.Error("expected ErrPersistence match")
	}
	if errors.Is(err, ErrStore) {
		t.Error("unexpected ErrStore match")
	}
	if err.Error() != "insert note: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestKindOfThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("finalize: %w", New(KindNotFound, "temporary recording not found"))
	kind, ok := KindOf(err)
	if !ok || kind != KindNotFound {
		t.Errorf("KindOf = %q, %v", kind, ok)
	}
	if Message(err) != "temporary recording not found" {
		t.Errorf("Message = %q", Message(err))
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		New(KindValidation, "x"):          http.StatusBadRequest,
		New(KindUnsupportedLanguage, "x"): http.StatusBadRequest,
		New(KindNotFound, "x"):            http.StatusNotFound,
		New(KindConflict, "x"):            http.StatusConflict,
		New(KindTranscription, "x"):       http.StatusBadGateway,
		New(KindArtifactWrite, "x"):       http.StatusInternalServerError,
		New(KindStore, "x"):               http.StatusInternalServerError,
		errors.New("plain"):               http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := HTTPStatus(err); got != want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", err, got, want)
		}
	}
}
