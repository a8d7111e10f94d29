// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes voxnotes tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/voxnotes/internal/apperr"
	"github.com/starford/voxnotes/internal/models"
	"github.com/starford/voxnotes/internal/naming"
	"github.com/starford/voxnotes/internal/noteservice"
	"github.com/starford/voxnotes/internal/storage"
)

const capabilitiesURI = "voxnotes://capabilities"

// Server wraps the MCP server with voxnotes tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *noteservice.Service
	files storage.Provider
}

// New creates a new MCP server with all voxnotes tools registered.
func New(svc *noteservice.Service, files storage.Provider) *Server {
	s := &Server{svc: svc, files: files}

	s.mcp = server.NewMCPServer(
		"voxnotes",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search voice notes by label and transcript text (case-insensitive). "+
			"Returns notes newest first."),
		mcp.WithString("query", mcp.Description("Substring to look for; empty lists all notes")),
		mcp.WithString("category", mcp.Description("Optional exact category filter")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the categories in use."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("read_transcript",
		mcp.WithDescription("Read the text artifact of a note: detected language, transcription "+
			"and English translation when present."),
		mcp.WithString("name", mcp.Required(),
			mcp.Description("Text artifact name (.txt) or the note's audio file name (.webm)")),
	), s.readTranscript)

	s.mcp.AddTool(mcp.NewTool("rename_note",
		mcp.WithDescription("Rename a note. Artifact timestamps are kept; only the label changes."),
		mcp.WithString("audio_file", mcp.Required(), mcp.Description("Audio file name identifying the note")),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("New label")),
	), s.renameNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note with all its artifacts."),
		mcp.WithString("audio_file", mcp.Required(), mcp.Description("Audio file name identifying the note")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("import_recording",
		mcp.WithDescription("Transcribe a WebM recording and save it as a note. "+
			"Only Hindi and English speech is accepted."),
		mcp.WithString("url", mcp.Required(),
			mcp.Description("http(s) URL or base64 data URI (data:audio/webm;base64,...)")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Label for the note")),
		mcp.WithString("category", mcp.Description("Category; defaults to Others")),
	), s.importRecording)

	s.mcp.AddResource(
		mcp.NewResource(capabilitiesURI, "Store capabilities",
			mcp.WithResourceDescription("Optional columns present in the live notes table."),
			mcp.WithMIMEType("application/json"),
		),
		s.readCapabilities,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(err error) *mcp.CallToolResult {
	if kind, ok := apperr.KindOf(err); ok {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", kind, apperr.Message(err)))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.svc.List(ctx, req.GetString("query", ""), req.GetString("category", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(notes), nil
}

func (s *Server) listCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := s.svc.Categories(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if cats == nil {
		cats = []string{models.DefaultCategory}
	}
	return jsonResult(cats), nil
}

func (s *Server) readTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.HasSuffix(name, naming.AudioExt) {
		note, err := s.svc.Get(ctx, name)
		if err != nil {
			return toolError(err), nil
		}
		if note == nil || note.TranscriptionFile == "" {
			return mcp.NewToolResultError(fmt.Sprintf("no transcript for %s", name)), nil
		}
		name = note.TranscriptionFile
	}
	if !strings.HasSuffix(name, naming.TextExt) {
		return mcp.NewToolResultError("name must be a .txt or .webm artifact"), nil
	}
	p, err := s.files.Path(models.ArtifactNotes, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) renameNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	audio, err := req.RequireString("audio_file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newName, err := req.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Rename(ctx, noteservice.ArtifactRef{Audio: audio}, newName)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	audio, err := req.RequireString("audio_file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Delete(ctx, noteservice.ArtifactRef{Audio: audio})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) readCapabilities(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.Marshal(s.svc.Capabilities())
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      capabilitiesURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
