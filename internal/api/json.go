package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starford/voxnotes/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error" validate:"required"`
	Kind    string `json:"kind,omitempty"`
}

func errorBody(kind apperr.Kind, msg string) errResponse {
	return errResponse{Error: msg, Kind: string(kind)}
}

// writeError maps err to its status and body. Store and persistence details
// stay in the log.
func writeError(w http.ResponseWriter, op string, err error) {
	status := apperr.HTTPStatus(err)
	kind, _ := apperr.KindOf(err)
	msg := apperr.Message(err)
	switch kind {
	case apperr.KindStore, apperr.KindPersistence, "":
		msg = "internal error"
	}
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("kind", string(kind)), slog.String("error", err.Error()))
	} else {
		slog.Debug(op+" rejected", slog.String("kind", string(kind)), slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(kind, msg))
}
