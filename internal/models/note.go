// Package models defines the persistent vault entity types.
package models

import "time"

// Frontmatter is the metadata block of a note. Values are strings or string lists.
type Frontmatter map[string]any

// Note is a parsed vault document.
type Note struct {
	Path        string      `json:"path"` // vault-relative, e.g. "Projects/garden.md"
	Folder      string      `json:"folder"`
	Filename    string      `json:"filename"`
	Frontmatter Frontmatter `json:"frontmatter,omitempty"`
	Body        string      `json:"body"`
	Checksum    string      `json:"checksum"`
}

// NoteMatch is a single search hit.
type NoteMatch struct {
	Path        string      `json:"path"`
	Folder      string      `json:"folder"`
	Filename    string      `json:"filename"`
	Frontmatter Frontmatter `json:"frontmatter,omitempty"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Values returns every frontmatter value flattened to strings, in no particular order.
func (fm Frontmatter) Values() []string {
	var out []string
	for _, v := range fm {
		switch val := v.(type) {
		case string:
			out = append(out, val)
		case []string:
			out = append(out, val...)
		}
	}
	return out
}

// String returns the scalar value for key, or "" when absent or a list.
func (fm Frontmatter) String(key string) string {
	if s, ok := fm[key].(string); ok {
		return s
	}
	return ""
}
