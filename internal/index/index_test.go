package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM routes`).Scan(&count); err != nil {
		t.Fatalf("routes table missing: %v", err)
	}
}

func TestUpsertAndGetNote(t *testing.T) {
	db := testDB(t)
	row := NoteRow{
		Path:        "Projects/garden.md",
		Folder:      "Projects",
		Title:       "Garden",
		Checksum:    "abc123",
		Frontmatter: models.Frontmatter{"status": "active", "tags": []string{"outdoor"}},
		UpdatedAt:   time.Now(),
	}
	if err := db.UpsertNote(row); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	cs, err := db.GetChecksum("Projects/garden.md")
	if err != nil || cs != "abc123" {
		t.Fatalf("GetChecksum = %q, %v", cs, err)
	}
	got, err := db.GetNote("Projects/garden.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != "Garden" || got.Folder != "Projects" || got.Frontmatter.String("status") != "active" {
		t.Errorf("note = %+v", got)
	}
	if tags, _ := got.Frontmatter["tags"].([]string); len(tags) != 1 || tags[0] != "outdoor" {
		t.Errorf("tags = %#v", got.Frontmatter["tags"])
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "Inbox/up.md", Title: "Old", Checksum: "1"})
	_ = db.UpsertNote(NoteRow{Path: "Inbox/up.md", Title: "New", Checksum: "2"})

	got, err := db.GetNote("Inbox/up.md")
	if err != nil {
		t.Fatal(err)
	}
	if got.Checksum != "2" || got.Title != "New" {
		t.Errorf("note = %+v", got)
	}
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "Inbox/del.md", Checksum: "x"})
	if err := db.DeleteNote("Inbox/del.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if _, err := db.GetNote("Inbox/del.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestRecentNotes(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	_ = db.UpsertNote(NoteRow{Path: "Inbox/old.md", Checksum: "1", UpdatedAt: now.Add(-48 * time.Hour)})
	_ = db.UpsertNote(NoteRow{Path: "Inbox/a.md", Checksum: "2", UpdatedAt: now.Add(-2 * time.Hour)})
	_ = db.UpsertNote(NoteRow{Path: "Inbox/b.md", Checksum: "3", UpdatedAt: now.Add(-1 * time.Hour)})

	got, err := db.RecentNotes(now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("RecentNotes: %v", err)
	}
	if len(got) != 2 || got[0].Path != "Inbox/b.md" || got[1].Path != "Inbox/a.md" {
		t.Errorf("recent = %+v", got)
	}
}

func TestLedger_RecordAndUsage(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now()

	records := []RouteRecord{
		{Agent: "filing", Tokens: 100, FiledPath: "Inbox/a.md"},
		{Agent: "filing", Tokens: 50},
		{Agent: "memory", Tokens: 0},
		{Agent: "vault_query", Failed: true},
		{Agent: "filing", Tokens: 999, CreatedAt: now.Add(-72 * time.Hour)},
	}
	for _, r := range records {
		if err := db.RecordRoute(ctx, r); err != nil {
			t.Fatalf("RecordRoute: %v", err)
		}
	}

	usage, err := db.UsageSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("UsageSince: %v", err)
	}
	want := []AgentUsage{
		{Agent: "filing", Messages: 2, Tokens: 150},
		{Agent: "memory", Messages: 1},
		{Agent: "vault_query", Messages: 1, Failures: 1},
	}
	if len(usage) != len(want) {
		t.Fatalf("usage = %+v", usage)
	}
	for i := range want {
		if usage[i] != want[i] {
			t.Errorf("usage[%d] = %+v, want %+v", i, usage[i], want[i])
		}
	}
}

type fakeAgent struct {
	res *agent.Result
	err error
}

func (fakeAgent) Name() string          { return "filing" }
func (fakeAgent) Description() string   { return "files" }
func (fakeAgent) ParameterHint() string { return "folder" }
func (f fakeAgent) Handle(context.Context, *agent.MessageContext) (*agent.Result, error) {
	return f.res, f.err
}

func TestTrack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	want := &agent.Result{ResponseText: "ok", FiledPath: "Inbox/x.md", TokensUsed: 12}
	a := Track(fakeAgent{res: want}, db, quietLogger())
	if _, ok := a.(agent.ParameterHinter); !ok {
		t.Error("tracked agent should keep its parameter hint")
	}
	got, err := a.Handle(ctx, &agent.MessageContext{})
	if err != nil || got != want {
		t.Fatalf("Handle = %v, %v", got, err)
	}

	boom := errors.New("boom")
	_, err = Track(fakeAgent{err: boom}, db, quietLogger()).Handle(ctx, &agent.MessageContext{})
	if err != boom {
		t.Fatalf("err = %v, want boom unchanged", err)
	}

	usage, _ := db.UsageSince(ctx, time.Now().Add(-time.Hour))
	if len(usage) != 1 || usage[0].Messages != 2 || usage[0].Failures != 1 || usage[0].Tokens != 12 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestSync(t *testing.T) {
	db := testDB(t)
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Write("Projects/a.md", []byte("---\ntitle: A\n---\n\nbody\n"))
	_ = store.Write("Inbox/b.md", []byte("# B\n"))
	_ = store.Write("_brain/directives.md", []byte("rule\n"))
	_ = db.UpsertNote(NoteRow{Path: "Inbox/gone.md", Checksum: "x"})

	if err := Sync(db, store, []string{"Projects", "Inbox"}, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	all, _ := db.AllChecksums()
	if len(all) != 2 {
		t.Fatalf("catalog = %v", all)
	}
	n, err := db.GetNote("Projects/a.md")
	if err != nil || n.Title != "A" || n.Folder != "Projects" {
		t.Errorf("note = %+v, %v", n, err)
	}
	if _, ok := all["_brain/directives.md"]; ok {
		t.Error("directives file should not be catalogued")
	}
}
