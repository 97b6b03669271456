// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes vault tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

const contractURI = "ansuz://vault-format"

// Vault is the subset of the vault store exposed as tools.
type Vault interface {
	SearchNotes(keywords, folders []string) ([]models.NoteMatch, error)
	ReadNote(path string) (*models.Note, error)
	ListProjects() ([]string, error)
	Directives() ([]string, error)
	AddDirective(text string) ([]string, error)
	RemoveDirective(index int) (string, bool, []string, error)
	SaveAttachment(originalName string, data []byte) (string, error)
}

// Server wraps the MCP server with vault tools.
type Server struct {
	mcp   *server.MCPServer
	vault Vault
}

// New creates a new MCP server with all vault tools registered.
func New(v Vault, version string) *Server {
	s := &Server{vault: v}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes by keywords matched against file names and frontmatter values. "+
			"Results are ordered by folder, then path."),
		mcp.WithString("keywords", mcp.Description("Comma-separated keywords; empty lists every note in scope")),
		mcp.WithString("folders", mcp.Description("Optional comma-separated folders to search (e.g. Actions,Projects)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note's frontmatter and body."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative note path (e.g. Projects/garden.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List existing project names."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("list_directives",
		mcp.WithDescription("List standing directives in 1-based order."),
	), s.listDirectives)

	s.mcp.AddTool(mcp.NewTool("add_directive",
		mcp.WithDescription("Append a standing directive applied to every future message."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Directive text; newlines are flattened")),
	), s.addDirective)

	s.mcp.AddTool(mcp.NewTool("remove_directive",
		mcp.WithDescription("Remove a directive by its 1-based index. Later directives are renumbered."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("1-based directive index")),
	), s.removeDirective)

	s.mcp.AddTool(mcp.NewTool("save_attachment",
		mcp.WithDescription("Store a base64-encoded file in the attachments area and return the embed "+
			"to paste into a note."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Original file name; sanitized before storing")),
		mcp.WithString("data", mcp.Required(), mcp.Description("Base64-encoded file content")),
	), s.saveAttachment)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Vault Format",
			mcp.WithResourceDescription("Vault layout and note format."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keywords := splitList(req.GetString("keywords", ""))
	folders := splitList(req.GetString("folders", ""))
	results, err := s.vault.SearchNotes(keywords, folders)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matching notes"), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.vault.ReadNote(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note), nil
}

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.vault.ListProjects()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(projects) == 0 {
		return mcp.NewToolResultText("no projects"), nil
	}
	return mcp.NewToolResultText(strings.Join(projects, "\n")), nil
}

func formatDirectives(list []string) string {
	if len(list) == 0 {
		return "no directives"
	}
	var b strings.Builder
	for i, d := range list {
		fmt.Fprintf(&b, "%d. %s\n", i+1, d)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Server) listDirectives(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.vault.Directives()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatDirectives(list)), nil
}

func (s *Server) addDirective(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	list, err := s.vault.AddDirective(text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatDirectives(list)), nil
}

func (s *Server) removeDirective(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	removed, ok, list, err := s.vault.RemoveDirective(index)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no directive #%d (have %d)", index, len(list))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed: %s\n%s", removed, formatDirectives(list))), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     VaultFormatContract,
		},
	}, nil
}
