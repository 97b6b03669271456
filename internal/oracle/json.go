package oracle

import (
	"fmt"
	"strings"
)

// ExtractJSON returns the substring of a model reply from the first '{' to
// the last '}', which drops Markdown code fences and surrounding prose.
func ExtractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return text[start : end+1], nil
}
