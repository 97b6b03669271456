package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/ingest"
)

const maxAttachmentSize = 10 << 20 // 10 MB

type savedAttachment struct {
	Filename string `json:"filename"`
	MIME     string `json:"mime"`
	Size     int    `json:"size"`
	Embed    string `json:"embed"`
}

func (s *Server) saveAttachment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	encoded, err := req.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Accept data URIs ("data:image/png;base64,...") as well as bare base64.
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return mcp.NewToolResultError("data is not valid base64"), nil
	}
	if len(data) == 0 {
		return mcp.NewToolResultError("data is empty"), nil
	}
	if len(data) > maxAttachmentSize {
		return mcp.NewToolResultError(fmt.Sprintf("attachment exceeds %d bytes", maxAttachmentSize)), nil
	}

	stored, err := s.vault.SaveAttachment(filename, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	mt := ingest.NormalizeMIME("", data)
	embed := "[[" + stored + "]]"
	if strings.HasPrefix(mt, "image/") {
		embed = "!" + embed
	}
	out, _ := json.Marshal(savedAttachment{Filename: stored, MIME: mt, Size: len(data), Embed: embed})
	return mcp.NewToolResultText(string(out)), nil
}
