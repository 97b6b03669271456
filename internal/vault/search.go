package vault

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
)

// SearchNotes scans folders (every configured folder when empty; unknown
// names are ignored) and returns notes whose filename or any frontmatter
// value contains one of keywords, case-insensitively. A blank keyword, like
// an empty keyword set, matches every note in scope. Results are ordered by
// folder name, then path.
func (s *Store) SearchNotes(keywords, folders []string) ([]models.NoteMatch, error) {
	scope := s.scope(folders)

	needles := make([]string, 0, len(keywords))
	for _, k := range keywords {
		needles = append(needles, strings.ToLower(strings.TrimSpace(k)))
	}

	var out []models.NoteMatch
	for _, folder := range scope {
		err := s.fs.Walk(folder, func(rel string, data []byte) error {
			res, _ := parser.Parse(data)
			filename := path.Base(rel)
			if !matches(needles, filename, res.Frontmatter) {
				return nil
			}
			out = append(out, models.NoteMatch{
				Path:        rel,
				Folder:      folder,
				Filename:    filename,
				Frontmatter: res.Frontmatter,
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("vault: search %s: %w", folder, err)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Folder != out[j].Folder {
			return out[i].Folder < out[j].Folder
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// scope resolves the requested folders to a sorted, de-duplicated list of
// configured folders.
func (s *Store) scope(folders []string) []string {
	seen := make(map[string]struct{})
	var out []string
	src := folders
	if len(src) == 0 {
		src = s.folders
	}
	for _, f := range src {
		f = strings.TrimSpace(f)
		if !s.HasFolder(f) {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func matches(needles []string, filename string, fm models.Frontmatter) bool {
	if len(needles) == 0 {
		return true
	}
	hay := make([]string, 0, len(fm)+1)
	hay = append(hay, strings.ToLower(filename))
	for _, v := range fm.Values() {
		hay = append(hay, strings.ToLower(v))
	}
	for _, n := range needles {
		if n == "" {
			return true
		}
		for _, h := range hay {
			if strings.Contains(h, n) {
				return true
			}
		}
	}
	return false
}

// ListProjects returns the sorted names of project sub-folders and top-level
// project notes (without extension) under the Projects folder.
func (s *Store) ListProjects() ([]string, error) {
	dirs, files, err := s.fs.Entries(ProjectsFolder)
	if err != nil {
		return nil, fmt.Errorf("vault: list projects: %w", err)
	}
	seen := make(map[string]struct{}, len(dirs)+len(files))
	out := []string{}
	add := func(name string) {
		if name == "" || strings.HasPrefix(name, ".") {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, d := range dirs {
		add(d)
	}
	for _, f := range files {
		if strings.HasSuffix(f, ".md") {
			add(strings.TrimSuffix(f, ".md"))
		}
	}
	sort.Strings(out)
	return out, nil
}
