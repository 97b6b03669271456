package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/vault"
)

func testServer(t *testing.T) (*Server, *vault.Store) {
	t.Helper()
	v := testutil.TestVault(t)
	return New(v, "test"), v
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "list_projects":
		result, err = srv.listProjects(ctx, req)
	case "list_directives":
		result, err = srv.listDirectives(ctx, req)
	case "add_directive":
		result, err = srv.addDirective(ctx, req)
	case "remove_directive":
		result, err = srv.removeDirective(ctx, req)
	case "save_attachment":
		result, err = srv.saveAttachment(ctx, req)
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

func TestSearchNotes(t *testing.T) {
	srv, v := testServer(t)
	_, _ = v.SaveNote("Actions", "call-plumber", models.Frontmatter{"priority": "high"}, "x")
	_, _ = v.SaveNote("Media", "dune", models.Frontmatter{"genre": "scifi"}, "x")

	r := callTool(t, srv, "search_notes", map[string]interface{}{"keywords": "HIGH, scifi"})
	var got []models.NoteMatch
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatalf("decode: %v (%q)", err, resultText(r))
	}
	if len(got) != 2 || got[0].Path != "Actions/call-plumber.md" || got[1].Path != "Media/dune.md" {
		t.Errorf("results = %+v", got)
	}

	r = callTool(t, srv, "search_notes", map[string]interface{}{"keywords": "scifi", "folders": "Actions"})
	if text := resultText(r); text != "no matching notes" {
		t.Errorf("filtered = %q", text)
	}
}

func TestReadNote(t *testing.T) {
	srv, v := testServer(t)
	path, _ := v.SaveNote("Reference", "sourdough", models.Frontmatter{"tags": []string{"bread"}}, "Feed the starter.")

	r := callTool(t, srv, "read_note", map[string]interface{}{"path": path})
	var note models.Note
	if err := json.Unmarshal([]byte(resultText(r)), &note); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if note.Folder != "Reference" || !strings.Contains(note.Body, "Feed the starter.") {
		t.Errorf("note = %+v", note)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "Inbox/nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
	r = callTool(t, srv, "read_note", map[string]interface{}{"path": "../etc/passwd"})
	if !r.IsError {
		t.Error("expected error for path outside the vault folders")
	}
}

func TestListProjects(t *testing.T) {
	srv, v := testServer(t)
	if text := resultText(callTool(t, srv, "list_projects", nil)); text != "no projects" {
		t.Errorf("empty = %q", text)
	}
	_, _ = v.SaveNote("Projects", "garden", nil, "x")
	_, _ = v.SaveNote("Projects", "attic", nil, "x")
	if text := resultText(callTool(t, srv, "list_projects", nil)); text != "attic\ngarden" {
		t.Errorf("projects = %q", text)
	}
}

func TestDirectiveTools(t *testing.T) {
	srv, v := testServer(t)

	_ = callTool(t, srv, "add_directive", map[string]interface{}{"text": "be brief"})
	r := callTool(t, srv, "add_directive", map[string]interface{}{"text": "tag recipes\nwith cuisine"})
	if text := resultText(r); text != "1. be brief\n2. tag recipes with cuisine" {
		t.Errorf("after add = %q", text)
	}

	r = callTool(t, srv, "remove_directive", map[string]interface{}{"index": float64(5)})
	if !r.IsError {
		t.Error("expected error for out-of-range index")
	}

	r = callTool(t, srv, "remove_directive", map[string]interface{}{"index": float64(1)})
	if text := resultText(r); !strings.HasPrefix(text, "removed: be brief") {
		t.Errorf("remove = %q", text)
	}
	list, _ := v.Directives()
	if len(list) != 1 {
		t.Errorf("directives = %v", list)
	}

	if text := resultText(callTool(t, srv, "list_directives", nil)); text != "1. tag recipes with cuisine" {
		t.Errorf("list = %q", text)
	}

	r = callTool(t, srv, "add_directive", map[string]interface{}{"text": "   "})
	if !r.IsError {
		t.Error("expected error for blank directive")
	}
}

func TestSaveAttachment(t *testing.T) {
	srv, v := testServer(t)
	png := []byte("\x89PNG\r\n\x1a\n0000")

	r := callTool(t, srv, "save_attachment", map[string]interface{}{
		"filename": "../whiteboard.png",
		"data":     "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
	if r.IsError {
		t.Fatalf("save failed: %s", resultText(r))
	}
	var got savedAttachment
	_ = json.Unmarshal([]byte(resultText(r)), &got)
	if got.Filename != "whiteboard.png" || got.Embed != "![[whiteboard.png]]" || got.MIME != "image/png" {
		t.Errorf("saved = %+v", got)
	}
	if data, err := v.ReadAttachment("whiteboard.png"); err != nil || string(data) != string(png) {
		t.Errorf("stored = %q, %v", data, err)
	}

	r = callTool(t, srv, "save_attachment", map[string]interface{}{"filename": "x.bin", "data": "!!!"})
	if !r.IsError {
		t.Error("expected error for invalid base64")
	}
}
