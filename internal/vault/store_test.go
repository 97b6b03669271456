package vault

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	s := New(fs)
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

func TestInitialize_CreatesLayout(t *testing.T) {
	s := newStore(t)
	for _, d := range append(DefaultFolders, AttachmentsDir, BrainDir) {
		info, err := os.Stat(filepath.Join(s.Root(), d))
		if err != nil || !info.IsDir() {
			t.Errorf("missing dir %s: %v", d, err)
		}
	}
	if err := s.Initialize(); err != nil {
		t.Errorf("second Initialize: %v", err)
	}
}

func TestInitialize_Unwritable(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	// Replace the root directory with a regular file.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	err = New(fs).Initialize()
	if !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestPing(t *testing.T) {
	s := newStore(t)
	if err := s.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	media := filepath.Join(s.Root(), "Media")
	if err := os.RemoveAll(media); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
	if _, err := os.Stat(media); !os.IsNotExist(err) {
		t.Errorf("Ping recreated %s: %v", media, err)
	}
	entries, _ := os.ReadDir(filepath.Join(s.Root(), BrainDir))
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %d", len(entries))
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Garden Plan":        "garden-plan",
		"  --Hello__World!! ": "hello-world",
		"notes.md":           "notes",
		"":                   "note",
		"???":                "note",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
	long := Slugify(string(bytes.Repeat([]byte("a"), 200)))
	if len(long) != maxSlugLen {
		t.Errorf("len = %d, want %d", len(long), maxSlugLen)
	}
}

func TestSaveNote_DoubleSaveKeepsBoth(t *testing.T) {
	s := newStore(t)

	p1, err := s.SaveNote("Projects", "garden", models.Frontmatter{"title": "first"}, "body one")
	if err != nil {
		t.Fatalf("SaveNote 1: %v", err)
	}
	p2, err := s.SaveNote("Projects", "garden", models.Frontmatter{"title": "second"}, "body two")
	if err != nil {
		t.Fatalf("SaveNote 2: %v", err)
	}
	if p1 != "Projects/garden.md" || p2 != "Projects/garden-1.md" {
		t.Fatalf("paths = %q, %q", p1, p2)
	}

	n1, err := s.ReadNote(p1)
	if err != nil {
		t.Fatalf("ReadNote: %v", err)
	}
	n2, _ := s.ReadNote(p2)
	if n1.Body != "body one\n" || n2.Body != "body two\n" {
		t.Errorf("bodies = %q, %q", n1.Body, n2.Body)
	}
	if n1.Frontmatter.String("title") != "first" || n2.Folder != "Projects" {
		t.Errorf("unexpected note data: %+v %+v", n1, n2)
	}
}

func TestSaveNote_ConcurrentSameSlug(t *testing.T) {
	s := newStore(t)
	const n = 16

	paths := make([]string, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			p, err := s.SaveNote("Inbox", "idea", nil, fmt.Sprintf("body %d", i))
			paths[i] = p
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("SaveNote: %v", err)
	}

	seen := make(map[string]bool)
	for _, p := range paths {
		if seen[p] {
			t.Fatalf("duplicate path %s", p)
		}
		seen[p] = true
	}
	matches, _ := s.SearchNotes(nil, []string{"Inbox"})
	if len(matches) != n {
		t.Errorf("notes on disk = %d, want %d", len(matches), n)
	}
}

func TestSaveNote_CollisionExhausted(t *testing.T) {
	s := newStore(t)
	for i := 0; i <= maxSuffix; i++ {
		name := "x.md"
		if i > 0 {
			name = fmt.Sprintf("x-%d.md", i)
		}
		if err := os.WriteFile(filepath.Join(s.Root(), InboxFolder, name), []byte("taken"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	_, err := s.SaveNote(InboxFolder, "x", nil, "body")
	if !errors.Is(err, apperr.ErrCollisionExhausted) {
		t.Fatalf("err = %v, want ErrCollisionExhausted", err)
	}
}

func TestSaveNote_UnknownFolder(t *testing.T) {
	s := newStore(t)
	_, err := s.SaveNote("Secret", "x", nil, "body")
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestReplaceNote_Conflict(t *testing.T) {
	s := newStore(t)
	p, _ := s.SaveNote("Reference", "recipe", nil, "v1")
	n, _ := s.ReadNote(p)

	if _, err := s.ReplaceNote(p, nil, "v2", n.Checksum); err != nil {
		t.Fatalf("ReplaceNote: %v", err)
	}
	// Stale checksum.
	if _, err := s.ReplaceNote(p, nil, "v3", n.Checksum); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	got, _ := s.ReadNote(p)
	if got.Body != "v2\n" {
		t.Errorf("body = %q, want v2", got.Body)
	}
}

func TestReadNote_Errors(t *testing.T) {
	s := newStore(t)
	if _, err := s.ReadNote("Inbox/missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: err = %v", err)
	}
	for _, p := range []string{"_brain/directives.md", "../x.md", "Inbox/../../x.md", "Inbox/a.txt"} {
		if _, err := s.ReadNote(p); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", p, err)
		}
	}
}

func TestSaveAttachment_DoubleSave(t *testing.T) {
	s := newStore(t)

	n1, err := s.SaveAttachment("photo.jpg", []byte("first"))
	if err != nil {
		t.Fatalf("SaveAttachment: %v", err)
	}
	n2, err := s.SaveAttachment("photo.jpg", []byte("second"))
	if err != nil {
		t.Fatalf("SaveAttachment: %v", err)
	}
	if n1 != "photo.jpg" || n2 != "photo-1.jpg" {
		t.Fatalf("names = %q, %q", n1, n2)
	}

	b1, _ := s.ReadAttachment(n1)
	b2, _ := s.ReadAttachment(n2)
	if string(b1) != "first" || string(b2) != "second" {
		t.Errorf("contents = %q, %q", b1, b2)
	}
}

func TestSaveAttachment_CollisionExhausted(t *testing.T) {
	s := newStore(t)
	for i := 0; i <= maxSuffix; i++ {
		name := "x.bin"
		if i > 0 {
			name = fmt.Sprintf("x-%d.bin", i)
		}
		if err := os.WriteFile(filepath.Join(s.Root(), AttachmentsDir, name), []byte("taken"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	_, err := s.SaveAttachment("x.bin", []byte("new"))
	if !errors.Is(err, apperr.ErrCollisionExhausted) {
		t.Fatalf("err = %v, want ErrCollisionExhausted", err)
	}
}

func TestSaveAttachment_Sanitize(t *testing.T) {
	s := newStore(t)

	name, err := s.SaveAttachment("../../etc/my file.png", []byte("x"))
	if err != nil {
		t.Fatalf("SaveAttachment: %v", err)
	}
	if name != "my_file.png" {
		t.Errorf("name = %q", name)
	}

	name, err = s.SaveAttachment("", []byte("y"))
	if err != nil || name == "" {
		t.Fatalf("empty name: %q, %v", name, err)
	}
	if _, err := s.ReadAttachment(name); err != nil {
		t.Errorf("ReadAttachment(%q): %v", name, err)
	}
}

func TestReadAttachment_Errors(t *testing.T) {
	s := newStore(t)
	if _, err := s.ReadAttachment("nope.png"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.ReadAttachment("../_brain/directives.md"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestDirectives_AddThenGet(t *testing.T) {
	s := newStore(t)
	before, _ := s.Directives()

	if _, err := s.AddDirective("always use metric units"); err != nil {
		t.Fatalf("AddDirective: %v", err)
	}
	after, err := s.Directives()
	if err != nil {
		t.Fatalf("Directives: %v", err)
	}
	if len(after) != len(before)+1 || after[len(after)-1] != "always use metric units" {
		t.Errorf("directives = %v", after)
	}
}

func TestDirectives_NewlinesFlattened(t *testing.T) {
	s := newStore(t)
	list, err := s.AddDirective("line one\nline two")
	if err != nil {
		t.Fatalf("AddDirective: %v", err)
	}
	if len(list) != 1 || list[0] != "line one line two" {
		t.Errorf("list = %q", list)
	}
	if _, err := s.AddDirective(" \n "); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("blank directive err = %v", err)
	}
}

func TestRemoveDirective(t *testing.T) {
	s := newStore(t)
	_, _ = s.AddDirective("a")
	_, _ = s.AddDirective("b")
	_, _ = s.AddDirective("c")

	removed, ok, list, err := s.RemoveDirective(2)
	if err != nil || !ok || removed != "b" {
		t.Fatalf("RemoveDirective(2) = %q, %v, %v", removed, ok, err)
	}
	if len(list) != 2 || list[0] != "a" || list[1] != "c" {
		t.Errorf("list = %v", list)
	}
}

func TestRemoveDirective_OutOfRangeLeavesFile(t *testing.T) {
	s := newStore(t)
	_, _ = s.AddDirective("keep me")
	file := filepath.Join(s.Root(), filepath.FromSlash(DirectivesFile))
	before, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	infoBefore, _ := os.Stat(file)

	for _, i := range []int{0, -1, 2, 99} {
		removed, ok, list, err := s.RemoveDirective(i)
		if err != nil || ok || removed != "" {
			t.Errorf("RemoveDirective(%d) = %q, %v, %v", i, removed, ok, err)
		}
		if len(list) != 1 || list[0] != "keep me" {
			t.Errorf("list = %v", list)
		}
	}

	after, _ := os.ReadFile(file)
	infoAfter, _ := os.Stat(file)
	if !bytes.Equal(before, after) {
		t.Errorf("file changed: %q -> %q", before, after)
	}
	if !infoAfter.ModTime().Equal(infoBefore.ModTime()) {
		t.Errorf("file was rewritten")
	}
}

func TestAddDirective_Concurrent(t *testing.T) {
	s := newStore(t)
	_, _ = s.AddDirective("seed")

	var g errgroup.Group
	g.Go(func() error { _, err := s.AddDirective("from caller one"); return err })
	g.Go(func() error { _, err := s.AddDirective("from caller two"); return err })
	if err := g.Wait(); err != nil {
		t.Fatalf("AddDirective: %v", err)
	}

	list, _ := s.Directives()
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3: %v", len(list), list)
	}
	got := append([]string(nil), list[1:]...)
	sort.Strings(got)
	if got[0] != "from caller one" || got[1] != "from caller two" {
		t.Errorf("list = %v", list)
	}
}

func TestDirectivesHook(t *testing.T) {
	fs, _ := storage.NewFS(t.TempDir())
	var mu sync.Mutex
	var calls [][]string
	s := New(fs, WithDirectivesHook(func(d []string) {
		mu.Lock()
		calls = append(calls, d)
		mu.Unlock()
	}))
	_ = s.Initialize()

	_, _ = s.AddDirective("x")
	_, _, _, _ = s.RemoveDirective(5)
	_, _, _, _ = s.RemoveDirective(1)

	if len(calls) != 2 || len(calls[0]) != 1 || len(calls[1]) != 0 {
		t.Errorf("calls = %v", calls)
	}
}
