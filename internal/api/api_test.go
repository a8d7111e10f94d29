package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/voxnotes/internal/apperr"
	"github.com/starford/voxnotes/internal/models"
	"github.com/starford/voxnotes/internal/naming"
	"github.com/starford/voxnotes/internal/noteservice"
	"github.com/starford/voxnotes/internal/testutil"
)

type env struct {
	svc    *noteservice.Service
	router http.Handler
	gw     *testutil.FakeGateway
	output string
}

// testEnv sets up a temp output dir, SQLite DB, fake engine, service and router.
// An empty token means disabled auth mode.
func testEnv(t *testing.T, authToken string) *env {
	t.Helper()
	return testEnvWithEvents(t, authToken, nil)
}

func testEnvWithEvents(t *testing.T, authToken string, events http.Handler) *env {
	t.Helper()
	output, files := testutil.TestOutput(t)
	db := testutil.TestDB(t)
	gw := &testutil.FakeGateway{Text: " namaste duniya ", Language: "hi", Translation: "hello world"}
	svc := noteservice.NewService(db, files, gw, noteservice.WithLogger(testutil.Logger()))
	router := NewRouter(svc, files, RouterOptions{
		AuthEnabled: authToken != "",
		Token:       authToken,
		Events:      events,
	})
	return &env{svc: svc, router: router, gw: gw, output: output}
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func uploadAudio(t *testing.T, e *env, field string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "note.webm")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload_audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

func saveNote(t *testing.T, e *env, body SaveNoteRequest) *httptest.ResponseRecorder {
	t.Helper()
	raw, _ := json.Marshal(body)
	return e.do(httptest.NewRequest(http.MethodPost, "/save_note", bytes.NewReader(raw)))
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) errResponse {
	t.Helper()
	var body errResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	if body.Success {
		t.Error("error body has success = true")
	}
	return body
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// createNote uploads and saves a recording, returning the save response.
func createNote(t *testing.T, e *env, name string) SaveNoteResponse {
	t.Helper()
	w := uploadAudio(t, e, "audio_data", []byte("webm-bytes"))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	var up UploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &up)

	w = saveNote(t, e, SaveNoteRequest{
		TempFilename: up.TempFilename,
		CustomName:   name,
		Category:     "Work",
		OrigText:     up.OrigText,
		EnText:       up.EnText,
		Language:     string(up.Language),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", w.Code, w.Body.String())
	}
	var saved SaveNoteResponse
	_ = json.Unmarshal(w.Body.Bytes(), &saved)
	return saved
}

func listNotes(t *testing.T, e *env, query string) NoteListResponse {
	t.Helper()
	w := e.do(httptest.NewRequest(http.MethodGet, "/notes"+query, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func TestUploadAudio(t *testing.T) {
	e := testEnv(t, "")

	w := uploadAudio(t, e, "audio_data", []byte("webm-bytes"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var up UploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &up)
	if up.OrigText != "namaste duniya" {
		t.Errorf("orig_text = %q", up.OrigText)
	}
	if up.EnText != "hello world" {
		t.Errorf("en_text = %q", up.EnText)
	}
	if up.Language != "hindi" {
		t.Errorf("language = %q", up.Language)
	}
	if !naming.IsTempName(up.TempFilename) {
		t.Errorf("temp_filename = %q", up.TempFilename)
	}
	if _, err := os.Stat(filepath.Join(e.output, "audio", up.TempFilename)); err != nil {
		t.Errorf("temp file not stored: %v", err)
	}
}

func TestUploadAudio_MissingField(t *testing.T) {
	e := testEnv(t, "")

	w := uploadAudio(t, e, "file", []byte("webm-bytes"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body := decodeErr(t, w); body.Error != "no audio_data uploaded" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestUploadAudio_UnsupportedLanguage(t *testing.T) {
	e := testEnv(t, "")
	e.gw.Language = "fr"

	w := uploadAudio(t, e, "audio_data", []byte("webm-bytes"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeErr(t, w)
	if body.Kind != string(apperr.KindUnsupportedLanguage) {
		t.Errorf("kind = %q", body.Kind)
	}
	if body.Error != "Language 'fr' not supported. Please speak in Hindi or English only." {
		t.Errorf("error = %q", body.Error)
	}
	if left := dirEntries(t, filepath.Join(e.output, "audio")); len(left) != 0 {
		t.Errorf("audio dir = %v, want empty", left)
	}
}

func TestUploadAudio_EngineFailure(t *testing.T) {
	e := testEnv(t, "")
	e.gw.Err = errors.New("connection refused")

	w := uploadAudio(t, e, "audio_data", []byte("webm-bytes"))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if body := decodeErr(t, w); body.Kind != string(apperr.KindTranscription) {
		t.Errorf("kind = %q", body.Kind)
	}
}

func TestSaveNoteAndServeArtifacts(t *testing.T) {
	e := testEnv(t, "")

	saved := createNote(t, e, "Standup notes!")
	if !saved.Success {
		t.Error("success = false")
	}
	if saved.Filename != "Standup-notes" {
		t.Errorf("filename = %q", saved.Filename)
	}
	if saved.Category != "Work" {
		t.Errorf("category = %q", saved.Category)
	}
	if !strings.HasPrefix(saved.TxtFile, "/outputs/notes/") || !strings.HasSuffix(saved.TxtFile, "_Standup-notes.txt") {
		t.Errorf("txt_file = %q", saved.TxtFile)
	}
	if !strings.HasPrefix(saved.AudioFile, "/outputs/audio/") || !strings.HasSuffix(saved.AudioFile, "_Standup-notes.webm") {
		t.Errorf("audio_file = %q", saved.AudioFile)
	}

	// Text artifact is a download.
	w := e.do(httptest.NewRequest(http.MethodGet, saved.TxtFile, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get txt = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Errorf("txt Content-Disposition = %q", cd)
	}
	if !strings.Contains(w.Body.String(), "namaste duniya") || !strings.Contains(w.Body.String(), "hello world") {
		t.Errorf("txt body = %q", w.Body.String())
	}

	// Docx is served too.
	w = e.do(httptest.NewRequest(http.MethodGet, saved.DocxFile, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get docx = %d", w.Code)
	}

	// Audio plays inline.
	w = e.do(httptest.NewRequest(http.MethodGet, saved.AudioFile, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get audio = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "" {
		t.Errorf("inline audio Content-Disposition = %q", cd)
	}
	if w.Body.String() != "webm-bytes" {
		t.Errorf("audio body = %q", w.Body.String())
	}

	// And downloads as an attachment.
	audioName := strings.TrimPrefix(saved.AudioFile, "/outputs/audio/")
	w = e.do(httptest.NewRequest(http.MethodGet, "/download_audio/"+audioName, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("download audio = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Errorf("download Content-Disposition = %q", cd)
	}
}

func TestSaveNote_AcceptsEngineLanguageCodes(t *testing.T) {
	e := testEnv(t, "")

	for code, want := range map[string]models.Language{"hi": models.LanguageHindi, " EN ": models.LanguageEnglish} {
		w := uploadAudio(t, e, "audio_data", []byte("webm-bytes"))
		var up UploadResponse
		_ = json.Unmarshal(w.Body.Bytes(), &up)

		w = saveNote(t, e, SaveNoteRequest{TempFilename: up.TempFilename, CustomName: string(want), Language: code})
		if w.Code != http.StatusOK {
			t.Fatalf("language %q: status = %d, body = %s", code, w.Code, w.Body.String())
		}
		var saved SaveNoteResponse
		_ = json.Unmarshal(w.Body.Bytes(), &saved)
		note, err := e.svc.Get(context.Background(), path.Base(saved.AudioFile))
		if err != nil || note == nil {
			t.Fatalf("language %q: get = %v, %v", code, note, err)
		}
		if note.Language != want {
			t.Errorf("language %q stored as %q, want %q", code, note.Language, want)
		}
	}

	w := saveNote(t, e, SaveNoteRequest{TempFilename: naming.NewTempName(time.Now()), CustomName: "x", Language: "klingon"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown language status = %d, want 400", w.Code)
	}
}

func TestSaveNote_MissingData(t *testing.T) {
	e := testEnv(t, "")

	w := saveNote(t, e, SaveNoteRequest{CustomName: "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body := decodeErr(t, w); body.Error != "Missing required data" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestSaveNote_InvalidJSON(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(httptest.NewRequest(http.MethodPost, "/save_note", strings.NewReader("{")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSaveNote_TempNotFound(t *testing.T) {
	e := testEnv(t, "")

	w := saveNote(t, e, SaveNoteRequest{
		TempFilename: naming.NewTempName(time.Now()),
		CustomName:   "ghost",
		Language:     "english",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %s", w.Code, w.Body.String())
	}
	if body := decodeErr(t, w); body.Kind != string(apperr.KindNotFound) {
		t.Errorf("kind = %q", body.Kind)
	}
}

func TestListNotes(t *testing.T) {
	e := testEnv(t, "")
	createNote(t, e, "alpha")
	createNote(t, e, "beta")

	resp := listNotes(t, e, "")
	if len(resp.Notes) != 2 {
		t.Fatalf("notes = %d, want 2", len(resp.Notes))
	}
	if len(resp.Categories) != 1 || resp.Categories[0] != "Work" {
		t.Errorf("categories = %v", resp.Categories)
	}

	resp = listNotes(t, e, "?q=ALPHA")
	if len(resp.Notes) != 1 || resp.Notes[0].Filename != "alpha" {
		t.Errorf("q=ALPHA = %+v", resp.Notes)
	}

	resp = listNotes(t, e, "?q=hello")
	if len(resp.Notes) != 2 {
		t.Errorf("q=hello matched %d notes, want 2", len(resp.Notes))
	}

	resp = listNotes(t, e, "?category=Personal")
	if len(resp.Notes) != 0 {
		t.Errorf("category=Personal = %d notes", len(resp.Notes))
	}
}

func TestRenameNote(t *testing.T) {
	e := testEnv(t, "")
	createNote(t, e, "draft")
	note := listNotes(t, e, "").Notes[0]

	q := url.Values{
		"txt":      {note.TranscriptionFile},
		"docx":     {note.DocxFile},
		"audio":    {note.AudioFile},
		"new_name": {"Final cut"},
	}
	w := e.do(httptest.NewRequest(http.MethodPut, "/rename_note?"+q.Encode(), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d, body = %s", w.Code, w.Body.String())
	}
	var resp RenameResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Success || len(resp.Renamed) != 3 {
		t.Fatalf("rename response = %+v", resp)
	}
	if !strings.HasSuffix(resp.Renamed["audio"], "_Final-cut.webm") {
		t.Errorf("renamed audio = %q", resp.Renamed["audio"])
	}

	after := listNotes(t, e, "").Notes
	if len(after) != 1 || after[0].Filename != "Final-cut" || after[0].AudioFile != resp.Renamed["audio"] {
		t.Errorf("row after rename = %+v", after)
	}
}

func TestRenameNote_NoName(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(httptest.NewRequest(http.MethodPut, "/rename_note?audio=x.webm", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body := decodeErr(t, w); body.Error != "New name not provided" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestDeleteNote(t *testing.T) {
	e := testEnv(t, "")
	createNote(t, e, "gone")
	note := listNotes(t, e, "").Notes[0]

	q := url.Values{
		"txt":   {note.TranscriptionFile},
		"docx":  {note.DocxFile},
		"audio": {note.AudioFile},
	}
	w := e.do(httptest.NewRequest(http.MethodDelete, "/delete_note?"+q.Encode(), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d, body = %s", w.Code, w.Body.String())
	}
	var resp DeleteResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Success || len(resp.Deleted) != 3 {
		t.Errorf("delete response = %+v", resp)
	}
	if n := len(listNotes(t, e, "").Notes); n != 0 {
		t.Errorf("notes after delete = %d", n)
	}

	// Repeating the delete succeeds with nothing removed.
	w = e.do(httptest.NewRequest(http.MethodDelete, "/delete_note?"+q.Encode(), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("second delete = %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Deleted) != 0 {
		t.Errorf("second delete removed %v", resp.Deleted)
	}
}

func TestDeleteNote_NoNames(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(httptest.NewRequest(http.MethodDelete, "/delete_note", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCapabilities(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(httptest.NewRequest(http.MethodGet, "/capabilities", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"has_category_column":true`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

// Artifact serving edge cases.

func TestServeArtifact_NotFound(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(httptest.NewRequest(http.MethodGet, "/outputs/notes/missing.txt", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestServeArtifact_DotfileRejected(t *testing.T) {
	e := testEnv(t, "")
	if err := os.WriteFile(filepath.Join(e.output, "notes", ".secret"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := e.do(httptest.NewRequest(http.MethodGet, "/outputs/notes/.secret", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestServeArtifact_TraversalBlocked(t *testing.T) {
	e := testEnv(t, "")
	if err := os.WriteFile(filepath.Join(e.output, "secret.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := e.do(httptest.NewRequest(http.MethodGet, "/outputs/notes/..%2Fsecret.txt", nil))
	if w.Code == http.StatusOK {
		t.Errorf("traversal served the file")
	}
}

// Auth middleware tests.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if w := e.do(req); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, "secret")

	w := e.do(httptest.NewRequest(http.MethodGet, "/notes", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/outputs/audio/x.webm", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if w := e.do(req); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := testEnv(t, "")

	if w := e.do(httptest.NewRequest(http.MethodGet, "/notes", nil)); w.Code != http.StatusOK {
		t.Errorf("disabled mode = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_SchemeAndChallenge(t *testing.T) {
	e := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "bearer secret")
	if w := e.do(req); w.Code != http.StatusOK {
		t.Errorf("lowercase scheme = %d, want 200", w.Code)
	}

	for _, header := range []string{"Basic secret", "Bearer", "Bearer ", "secret"} {
		req := httptest.NewRequest(http.MethodGet, "/notes", nil)
		req.Header.Set("Authorization", header)
		w := e.do(req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%q = %d, want 401", header, w.Code)
		}
		if got := w.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
			t.Errorf("%q: WWW-Authenticate = %q", header, got)
		}
	}
}

// SSE endpoint auth tests.

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := testEnvWithEvents(t, "secret", sseStub)

	w := e.do(httptest.NewRequest(http.MethodGet, "/events", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := testEnvWithEvents(t, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := e.do(req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

func TestSSEEvents_NotMounted(t *testing.T) {
	e := testEnv(t, "")

	if w := e.do(httptest.NewRequest(http.MethodGet, "/events", nil)); w.Code != http.StatusNotFound {
		t.Errorf("unmounted /events = %d, want 404", w.Code)
	}
}

// Error mapping.

func TestWriteError_HidesStoreDetail(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, "list notes", apperr.Wrap(apperr.KindStore, "notestore: query notes", errors.New("disk I/O error")))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	body := decodeErr(t, w)
	if body.Error != "internal error" || body.Kind != "store" {
		t.Errorf("body = %+v", body)
	}
}

func TestWriteError_ConflictKeepsMessage(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, "rename note", apperr.New(apperr.KindConflict, "an artifact named x.txt already exists"))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if body := decodeErr(t, w); body.Error != "an artifact named x.txt already exists" {
		t.Errorf("error = %q", body.Error)
	}
}
