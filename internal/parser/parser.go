// Package parser reads and writes the vault note document format: a YAML
// frontmatter block between "---" delimiters followed by a Markdown body.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/models"
)

const delim = "---"

// Result holds the output of parsing a note document.
type Result struct {
	Frontmatter models.Frontmatter
	Body        string
	Title       string
}

// Parse extracts frontmatter, body and title from raw document bytes.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
	}, nil
}

// Render serializes frontmatter and body into the document format. Keys are
// emitted in sorted order so equal input always renders to equal bytes.
func Render(fm models.Frontmatter, body string) ([]byte, error) {
	var buf bytes.Buffer
	if len(fm) > 0 {
		buf.WriteString(delim + "\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any(fm)); err != nil {
			return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
		}
		buf.WriteString(delim + "\n\n")
	}
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Missing or invalid frontmatter leaves the whole content as body.
func splitFrontmatter(data []byte) (models.Frontmatter, string) {
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var raw map[string]any
	if err := yaml.Unmarshal(yamlBlock, &raw); err != nil {
		return nil, string(data)
	}
	return Normalize(raw), body
}

// Normalize coerces decoded YAML values into the frontmatter value shapes:
// scalars become strings, sequences become string lists.
func Normalize(raw map[string]any) models.Frontmatter {
	if raw == nil {
		return nil
	}
	fm := make(models.Frontmatter, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			fm[k] = ""
		case []string:
			fm[k] = val
		case []any:
			list := make([]string, 0, len(val))
			for _, item := range val {
				list = append(list, scalar(item))
			}
			fm[k] = list
		default:
			fm[k] = scalar(val)
		}
	}
	return fm
}

func scalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm models.Frontmatter, body string) string {
	if t := fm.String("title"); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
