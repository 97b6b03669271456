// Package agents contains the concrete message handlers: filing, vault
// queries, vault edits and directive memory.
package agents

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/models"
)

// Intent names.
const (
	FilingName     = "filing"
	VaultQueryName = "vault_query"
	VaultEditName  = "vault_edit"
	MemoryName     = "memory"
)

// Vault is the subset of the vault store the handlers use.
type Vault interface {
	Folders() []string
	HasFolder(name string) bool
	ListProjects() ([]string, error)
	SaveNote(folder, slug string, fm models.Frontmatter, body string) (string, error)
	ReadNote(path string) (*models.Note, error)
	ReplaceNote(path string, fm models.Frontmatter, body, ifMatch string) (string, error)
	SearchNotes(keywords, folders []string) ([]models.NoteMatch, error)
	Directives() ([]string, error)
	AddDirective(text string) ([]string, error)
	RemoveDirective(index int) (string, bool, []string, error)
}

// Clock returns the current time. Handlers default to time.Now.
type Clock func() time.Time

func directivesSection(list []string) string {
	if len(list) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## User directives (always follow)\n")
	for i, d := range list {
		fmt.Fprintf(&b, "%d. %s\n", i+1, d)
	}
	return b.String()
}

// formatFrontmatter renders fm as "key: value | key: value" in key order.
func formatFrontmatter(fm models.Frontmatter) string {
	keys := make([]string, 0, len(fm))
	for k := range fm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := fm[k].(type) {
		case []string:
			items = append(items, fmt.Sprintf("%s: %s", k, strings.Join(v, ", ")))
		default:
			items = append(items, fmt.Sprintf("%s: %v", k, v))
		}
	}
	return strings.Join(items, " | ")
}

// stripFences removes a surrounding Markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
