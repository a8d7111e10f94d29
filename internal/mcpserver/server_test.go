package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/voxnotes/internal/models"
	"github.com/starford/voxnotes/internal/noteservice"
	"github.com/starford/voxnotes/internal/testutil"
)

var webm = append([]byte{0x1A, 0x45, 0xDF, 0xA3}, []byte("rest-of-recording")...)

func testServer(t *testing.T) (*Server, *testutil.FakeGateway) {
	t.Helper()
	_, files := testutil.TestOutput(t)
	db := testutil.TestDB(t)
	gw := &testutil.FakeGateway{Text: "buy milk", Language: "en"}
	svc := noteservice.NewService(db, files, gw, noteservice.WithLogger(testutil.Logger()))
	return New(svc, files), gw
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "list_categories":
		result, err = srv.listCategories(ctx, req)
	case "read_transcript":
		result, err = srv.readTranscript(ctx, req)
	case "rename_note":
		result, err = srv.renameNote(ctx, req)
	case "delete_note":
		result, err = srv.deleteNote(ctx, req)
	case "import_recording":
		result, err = srv.importRecording(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func dataURI(b []byte) string {
	return "data:audio/webm;base64," + base64.StdEncoding.EncodeToString(b)
}

func importNote(t *testing.T, srv *Server, name string) models.Note {
	t.Helper()
	r := callTool(t, srv, "import_recording", map[string]any{
		"url":      dataURI(webm),
		"name":     name,
		"category": "Errands",
	})
	if r.IsError {
		t.Fatalf("import failed: %s", resultText(r))
	}
	var note models.Note
	if err := json.Unmarshal([]byte(resultText(r)), &note); err != nil {
		t.Fatalf("decode note: %v", err)
	}
	return note
}

func TestImportSearchAndRead(t *testing.T) {
	srv, _ := testServer(t)
	note := importNote(t, srv, "Shopping list")
	if note.Filename != "Shopping-list" || note.Category != "Errands" {
		t.Errorf("note = %+v", note)
	}

	r := callTool(t, srv, "search_notes", map[string]any{"query": "MILK"})
	var found []models.Note
	if err := json.Unmarshal([]byte(resultText(r)), &found); err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].AudioFile != note.AudioFile {
		t.Errorf("search = %+v", found)
	}

	r = callTool(t, srv, "read_transcript", map[string]any{"name": note.AudioFile})
	want := "Language detected: english\n\nOriginal transcription:\nbuy milk\n"
	if resultText(r) != want {
		t.Errorf("transcript = %q", resultText(r))
	}
}

func TestImportRejectsNonWebM(t *testing.T) {
	srv, gw := testServer(t)
	r := callTool(t, srv, "import_recording", map[string]any{
		"url":  dataURI([]byte("RIFF....WAVE")),
		"name": "x",
	})
	if !r.IsError {
		t.Error("expected error for non-webm content")
	}
	if gw.Transcribed != 0 {
		t.Error("engine called for rejected content")
	}
}

func TestImportUnsupportedLanguage(t *testing.T) {
	srv, gw := testServer(t)
	gw.Language = "de"
	r := callTool(t, srv, "import_recording", map[string]any{"url": dataURI(webm), "name": "x"})
	if !r.IsError || !strings.Contains(resultText(r), "unsupported_language") {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestImportBlocksLoopback(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "import_recording", map[string]any{"url": "http://127.0.0.1:1/a.webm", "name": "x"})
	if !r.IsError || !strings.Contains(resultText(r), "blocked host") {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestImportBlocksLocalNetwork(t *testing.T) {
	srv, _ := testServer(t)
	for _, host := range []string{"10.0.0.7", "192.168.1.20", "172.16.4.4", "169.254.169.254", "[fd00::1]", "0.0.0.0", "localhost"} {
		r := callTool(t, srv, "import_recording", map[string]any{"url": "http://" + host + "/a.webm", "name": "x"})
		if !r.IsError || !strings.Contains(resultText(r), "blocked host") {
			t.Errorf("%s: result = %q", host, resultText(r))
		}
	}
}

func TestCheckBlockedHost(t *testing.T) {
	tests := []struct {
		host    string
		blocked bool
	}{
		{"127.0.0.1", true},
		{"::1", true},
		{"10.1.2.3", true},
		{"192.168.0.1", true},
		{"169.254.169.254", true},
		{"fe80::1", true},
		{"::ffff:192.168.0.1", true},
		{"metadata.google.internal", true},
		{"LOCALHOST.", true},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
	}
	for _, tt := range tests {
		err := checkBlockedHost(context.Background(), tt.host)
		if got := err != nil; got != tt.blocked {
			t.Errorf("checkBlockedHost(%q) = %v, want blocked=%v", tt.host, err, tt.blocked)
		}
	}
}

func TestRenameAndDelete(t *testing.T) {
	srv, _ := testServer(t)
	note := importNote(t, srv, "Before")

	r := callTool(t, srv, "rename_note", map[string]any{"audio_file": note.AudioFile, "new_name": "After"})
	if r.IsError {
		t.Fatalf("rename failed: %s", resultText(r))
	}
	newAudio := strings.Replace(note.AudioFile, "Before", "After", 1)
	if !strings.Contains(resultText(r), newAudio) {
		t.Errorf("rename result = %s", resultText(r))
	}

	r = callTool(t, srv, "delete_note", map[string]any{"audio_file": newAudio})
	if r.IsError {
		t.Fatalf("delete failed: %s", resultText(r))
	}
	r = callTool(t, srv, "search_notes", map[string]any{})
	if strings.TrimSpace(resultText(r)) != "[]" {
		t.Errorf("notes left after delete: %s", resultText(r))
	}
}

func TestReadTranscriptMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_transcript", map[string]any{"name": "nope.txt"})
	if !r.IsError {
		t.Error("expected error for missing transcript")
	}
	r = callTool(t, srv, "read_transcript", map[string]any{"name": "../etc/passwd.txt"})
	if !r.IsError {
		t.Error("expected error for traversal")
	}
}

func TestListCategories(t *testing.T) {
	srv, _ := testServer(t)
	importNote(t, srv, "One")
	r := callTool(t, srv, "list_categories", map[string]any{})
	if strings.TrimSpace(resultText(r)) != "[\n  \"Errands\"\n]" {
		t.Errorf("categories = %q", resultText(r))
	}
}
