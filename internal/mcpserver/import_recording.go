package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/voxnotes/internal/noteservice"
)

const maxRecordingSize = 50 << 20 // 50 MB

// ebmlMagic starts every WebM/Matroska file.
var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

var acceptedMIME = map[string]bool{
	"audio/webm": true,
	"video/webm": true,
}

func (s *Server) importRecording(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var data []byte
	if strings.HasPrefix(rawURL, "data:") {
		data, err = decodeDataURI(rawURL)
	} else {
		data, err = fetchHTTP(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxRecordingSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxRecordingSize)), nil
	}
	if !bytes.HasPrefix(data, ebmlMagic) {
		return mcp.NewToolResultError("content is not a WebM recording"), nil
	}

	up, err := s.svc.Upload(ctx, data)
	if err != nil {
		return toolError(err), nil
	}
	note, err := s.svc.Finalize(ctx, noteservice.FinalizeInput{
		TempName: up.TempFilename,
		Label:    name,
		Category: req.GetString("category", ""),
		OrigText: up.OrigText,
		EnText:   up.EnText,
		Language: up.Language,
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(note), nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, encoded, found := strings.Cut(rest, ",")
	if !found {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, fmt.Errorf("only base64 data URIs are supported")
	}
	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	if !acceptedMIME[mime] {
		return nil, fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}

// fetchHTTP downloads a recording from an HTTP/HTTPS URL.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := checkBlockedHost(ctx, parsed.Hostname()); err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: 60 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.Context(), req.URL.Hostname())
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordingSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxRecordingSize {
		return nil, fmt.Errorf("file too large: exceeds %d bytes", maxRecordingSize)
	}
	return data, nil
}

// blockedHostnames are refused before any lookup.
var blockedHostnames = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
}

// checkBlockedHost refuses hosts that resolve into the machine or its local
// network: loopback, RFC 1918 and ULA ranges, link-local (which includes the
// cloud metadata address) and the unspecified address. Every resolved address
// must pass; unresolvable names are left for the HTTP client to report.
func checkBlockedHost(ctx context.Context, host string) error {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if blockedHostnames[host] {
		return fmt.Errorf("blocked host: %s", host)
	}

	var addrs []netip.Addr
	if addr, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{addr}
	} else {
		resolved, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return nil //nolint:nilerr // the download reports DNS failures
		}
		addrs = resolved
	}
	for _, addr := range addrs {
		if reason := blockedReason(addr.Unmap()); reason != "" {
			return fmt.Errorf("blocked host: %s address %s", reason, host)
		}
	}
	return nil
}

func blockedReason(addr netip.Addr) string {
	switch {
	case addr.IsLoopback():
		return "loopback"
	case addr.IsPrivate():
		return "private"
	case addr.IsLinkLocalUnicast(), addr.IsLinkLocalMulticast():
		return "link-local"
	case addr.IsUnspecified():
		return "unspecified"
	}
	return ""
}
