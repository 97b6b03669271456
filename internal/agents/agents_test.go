package agents

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/router"
	"github.com/starford/ansuz/internal/testutil"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func fixedClock() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC) }

func handle(t *testing.T, a agent.Agent, data map[string]any, raw string) *agent.Result {
	t.Helper()
	res, err := a.Handle(context.Background(), &agent.MessageContext{RawText: raw, RouterData: data})
	if err != nil {
		t.Fatalf("%s.Handle: %v", a.Name(), err)
	}
	return res
}

func wantReply(t *testing.T, res *agent.Result, want string) {
	t.Helper()
	if res.ResponseText != want {
		t.Errorf("reply = %q, want %q", res.ResponseText, want)
	}
}

func wantContains(t *testing.T, s string, subs ...string) {
	t.Helper()
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			t.Errorf("%q does not contain %q", s, sub)
		}
	}
}

func TestMemory_AddRemoveList(t *testing.T) {
	v := testutil.TestVault(t)
	m := NewMemory(v, quietLogger())

	res := handle(t, m, map[string]any{"memory_action": "add", "directive_text": "use metric"}, "")
	wantReply(t, res, "✅ Remembered: _use metric_\nI now have 1 directive(s).")

	handle(t, m, map[string]any{"memory_action": "add", "directive_text": "be brief"}, "")

	res = handle(t, m, map[string]any{"memory_action": "remove", "directive_index": "#5"}, "")
	wantReply(t, res, "⚠️ No directive #5. I have 2 directive(s). Use 'list directives' to see them.")

	res = handle(t, m, map[string]any{"memory_action": "remove", "directive_index": float64(1)}, "")
	wantReply(t, res, "🗑️ Forgot directive #1: _use metric_\n1 directive(s) remaining.")

	res = handle(t, m, map[string]any{"memory_action": "list"}, "")
	wantContains(t, res.ResponseText, "  1. be brief\n", "_1 directive(s). Say 'forget #N' to remove one._")
}

func TestMemory_DegradesToList(t *testing.T) {
	v := testutil.TestVault(t)
	m := NewMemory(v, quietLogger())

	for _, data := range []map[string]any{
		nil,
		{"memory_action": "add"},
		{"memory_action": "remove", "directive_index": "first"},
		{"memory_action": 42},
		{"memory_action": "explode"},
	} {
		res := handle(t, m, data, "")
		wantReply(t, res, "I don't have any directives yet. Send me 'remember: <rule>' to add one.")
	}
}

func TestMemory_EndToEndThroughRouter(t *testing.T) {
	v := testutil.TestVault(t)
	o := testutil.NewScriptedOracle(
		testutil.Reply(`{"intent":"memory","parameters":{"memory_action":"add","directive_text":"always use metric units"}}`, 12),
		testutil.Reply(`{"intent":"memory","parameters":{"memory_action":"list"}}`, 8),
	)
	reg, err := agent.NewRegistry(
		NewFiling(v, o, "Inbox", fixedClock, quietLogger()),
		NewMemory(v, quietLogger()),
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	r, err := router.New(router.NewClassifier(o, time.Second), reg, FilingName, v, quietLogger())
	if err != nil {
		t.Fatalf("router.New: %v", err)
	}

	res, err := r.Route(context.Background(), &agent.MessageContext{RawText: "remember: always use metric units"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	wantContains(t, res.ResponseText, "Remembered: _always use metric units_", "I now have 1 directive(s).")

	list, err := v.Directives()
	if err != nil {
		t.Fatalf("Directives: %v", err)
	}
	if !reflect.DeepEqual(list, []string{"always use metric units"}) {
		t.Errorf("directives = %q", list)
	}

	res, err = r.Route(context.Background(), &agent.MessageContext{RawText: "list directives"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	wantContains(t, res.ResponseText, "  1. always use metric units\n")
	if o.Calls() != 2 {
		t.Errorf("oracle calls = %d, want 2", o.Calls())
	}
}

func TestVaultQuery_NoMatches(t *testing.T) {
	v := testutil.TestVault(t)
	o := testutil.NewScriptedOracle()
	q := NewVaultQuery(v, o, fixedClock, quietLogger())

	res := handle(t, q, map[string]any{"search_terms": []any{"unicorn"}}, "any unicorns?")
	wantReply(t, res, NoMatchesReply)
	if res.TokensUsed != 0 || o.Calls() != 0 {
		t.Errorf("tokens = %d, oracle calls = %d; want 0, 0", res.TokensUsed, o.Calls())
	}
}

func TestVaultQuery_Answers(t *testing.T) {
	v := testutil.TestVault(t)
	if _, err := v.SaveNote("Actions", "buy-seeds", models.Frontmatter{"due": "2026-11-01", "tags": []string{"garden"}}, "x"); err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	if _, err := v.AddDirective("answer in one line"); err != nil {
		t.Fatalf("AddDirective: %v", err)
	}

	o := testutil.NewScriptedOracle(testutil.Reply("  You need to buy seeds by Nov 1.  ", 42))
	q := NewVaultQuery(v, o, fixedClock, quietLogger())

	res := handle(t, q, map[string]any{"search_terms": "seeds", "folders": []any{"Actions"}}, "what do I need to do?")
	wantReply(t, res, "You need to buy seeds by Nov 1.")
	if res.TokensUsed != 42 {
		t.Errorf("tokens = %d, want 42", res.TokensUsed)
	}

	req := o.Requests()[0]
	wantContains(t, req.Prompt,
		"- **buy-seeds.md** (in Actions/)\n  due: 2026-11-01 | tags: garden",
		"## Question\nwhat do I need to do?")
	wantContains(t, req.System, "1. answer in one line", "Current time: 2026-10-19 09:30")
}

func TestVaultQuery_OracleErrorPropagates(t *testing.T) {
	v := testutil.TestVault(t)
	_, _ = v.SaveNote("Inbox", "thing", nil, "x")
	boom := errors.New("Error 500, Message: internal")
	q := NewVaultQuery(v, testutil.NewScriptedOracle(testutil.Step{Err: boom}), fixedClock, quietLogger())

	_, err := q.Handle(context.Background(), &agent.MessageContext{RawText: "?", RouterData: map[string]any{}})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestFiling_SavesPlannedNote(t *testing.T) {
	v := testutil.TestVault(t)
	o := testutil.NewScriptedOracle(testutil.Reply("```json\n"+
		`{"folder":"Media","slug":"Dune","frontmatter":{"title":"Dune","tags":["book","scifi"]},"body":"Read Dune."}`+
		"\n```", 30))
	f := NewFiling(v, o, "Inbox", fixedClock, quietLogger())

	res, err := f.Handle(context.Background(), &agent.MessageContext{
		RawText: "I should read Dune",
		Attachments: []agent.Fragment{
			{Name: "cover.jpg", MIME: "image/jpeg", Data: []byte{0xff, 0xd8}, Link: "![[cover.jpg]]"},
		},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.FiledPath != "Media/dune.md" || res.TokensUsed != 30 {
		t.Errorf("result = %+v", res)
	}
	wantReply(t, res, "📂 Filed to `Media/` as `dune.md` (30 tokens)")

	note, err := v.ReadNote(res.FiledPath)
	if err != nil {
		t.Fatalf("ReadNote: %v", err)
	}
	if got := note.Frontmatter.String("created"); got != "2026-10-19 09:30" {
		t.Errorf("created = %q", got)
	}
	if got := note.Frontmatter["tags"]; !reflect.DeepEqual(got, []string{"book", "scifi"}) {
		t.Errorf("tags = %#v", got)
	}
	wantContains(t, note.Body, "Read Dune.", "![[cover.jpg]]")

	req := o.Requests()[0]
	if !req.JSON {
		t.Error("filing request should ask for JSON")
	}
	if len(req.Parts) != 1 {
		t.Fatalf("parts = %d, want 1", len(req.Parts))
	}
	wantContains(t, req.Prompt, "cover.jpg (image/jpeg) saved as ![[cover.jpg]]")
}

func TestFiling_UnknownFolderGoesToInbox(t *testing.T) {
	v := testutil.TestVault(t)
	o := testutil.NewScriptedOracle(testutil.Reply(`{"folder":"Secrets","slug":"x","body":"hidden"}`, 3))
	f := NewFiling(v, o, "Inbox", fixedClock, quietLogger())

	if res := handle(t, f, nil, "hidden"); res.FiledPath != "Inbox/x.md" {
		t.Errorf("filed to %q, want Inbox/x.md", res.FiledPath)
	}
}

func TestFiling_UnparsableReplyFilesRawText(t *testing.T) {
	v := testutil.TestVault(t)
	o := testutil.NewScriptedOracle(testutil.Reply("Sorry, I can't produce JSON today.", 5))
	f := NewFiling(v, o, "Inbox", fixedClock, quietLogger())

	res := handle(t, f, nil, "call the plumber about the leak tomorrow morning")
	if res.FiledPath != "Inbox/call-the-plumber-about-the-leak.md" {
		t.Errorf("filed to %q", res.FiledPath)
	}

	note, err := v.ReadNote(res.FiledPath)
	if err != nil {
		t.Fatalf("ReadNote: %v", err)
	}
	if got := note.Frontmatter.String("source"); got != "chat" {
		t.Errorf("source = %q, want chat", got)
	}
	if want := "call the plumber about the leak tomorrow morning\n"; note.Body != want {
		t.Errorf("body = %q, want %q", note.Body, want)
	}
}

func TestFiling_OracleErrorPropagates(t *testing.T) {
	v := testutil.TestVault(t)
	f := NewFiling(v, testutil.NewScriptedOracle(testutil.Step{Err: apperr.ErrOracleTransport}), "Inbox", fixedClock, quietLogger())
	_, err := f.Handle(context.Background(), &agent.MessageContext{RawText: "x"})
	if !errors.Is(err, apperr.ErrOracleTransport) {
		t.Errorf("err = %v, want ErrOracleTransport", err)
	}
}

func TestVaultEdit_RewritesFirstMatch(t *testing.T) {
	v := testutil.TestVault(t)
	p, err := v.SaveNote("Projects", "garden-plan", models.Frontmatter{"status": "active"}, "- tomatoes")
	if err != nil {
		t.Fatalf("SaveNote: %v", err)
	}

	o := testutil.NewScriptedOracle(testutil.Reply("```markdown\n- tomatoes\n- basil\n```", 9))
	e := NewVaultEdit(v, o, fixedClock, quietLogger())

	res := handle(t, e, map[string]any{"search_terms": []any{"garden"}, "instruction": "add basil"}, "add basil to the garden plan")
	if res.FiledPath != p || res.TokensUsed != 9 {
		t.Errorf("result = %+v", res)
	}

	note, err := v.ReadNote(p)
	if err != nil {
		t.Fatalf("ReadNote: %v", err)
	}
	if note.Body != "- tomatoes\n- basil\n" {
		t.Errorf("body = %q", note.Body)
	}
	if note.Frontmatter.String("status") != "active" || note.Frontmatter.String("updated") != "2026-10-19 09:30" {
		t.Errorf("frontmatter = %v", note.Frontmatter)
	}
	wantContains(t, o.Requests()[0].Prompt, "## Instruction\nadd basil")
}

func TestVaultEdit_NoTarget(t *testing.T) {
	v := testutil.TestVault(t)
	o := testutil.NewScriptedOracle()
	e := NewVaultEdit(v, o, fixedClock, quietLogger())

	wantReply(t, handle(t, e, map[string]any{"search_terms": "nothing-here"}, "edit it"), NoEditTargetReply)
	wantReply(t, handle(t, e, nil, "edit it"), NoEditTargetReply)
	if o.Calls() != 0 {
		t.Errorf("oracle calls = %d, want 0", o.Calls())
	}
}

// concurrentEditVault changes the note between read and replace.
type concurrentEditVault struct {
	Vault
	path string
}

func (c concurrentEditVault) ReplaceNote(path string, fm models.Frontmatter, body, ifMatch string) (string, error) {
	if _, err := c.Vault.ReplaceNote(c.path, nil, "someone else", ""); err != nil {
		return "", err
	}
	return c.Vault.ReplaceNote(path, fm, body, ifMatch)
}

func TestVaultEdit_ConflictSurfaces(t *testing.T) {
	v := testutil.TestVault(t)
	p, _ := v.SaveNote("Reference", "wifi", nil, "password: old")
	o := testutil.NewScriptedOracle(testutil.Reply("password: new", 2))
	e := NewVaultEdit(concurrentEditVault{Vault: v, path: p}, o, fixedClock, quietLogger())

	_, err := e.Handle(context.Background(), &agent.MessageContext{RouterData: map[string]any{"search_terms": "wifi"}})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}

	note, _ := v.ReadNote(p)
	if !strings.HasPrefix(note.Body, "someone else") {
		t.Errorf("body = %q, concurrent edit was overwritten", note.Body)
	}
}
