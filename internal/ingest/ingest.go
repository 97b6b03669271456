// Package ingest turns uploaded attachments into prompt fragments, storing
// binaries and large text files in the vault attachments area.
package ingest

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/starford/ansuz/internal/agent"
)

// InlineMaxBytes is the largest text attachment inlined into the prompt.
const InlineMaxBytes = 50 * 1024

// binaryMIMEs are passed to the oracle as raw data parts.
var binaryMIMEs = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"image/heic":      true,
	"image/heif":      true,
	"application/pdf": true,
	"audio/mpeg":      true,
	"audio/mp4":       true,
	"audio/ogg":       true,
	"audio/wav":       true,
	"audio/webm":      true,
	"audio/aac":       true,
	"audio/flac":      true,
	"video/mp4":       true,
	"video/webm":      true,
}

// mimeAliases maps non-canonical types sent by chat clients.
var mimeAliases = map[string]string{
	"image/jpg":   "image/jpeg",
	"audio/mp3":   "audio/mpeg",
	"audio/x-wav": "audio/wav",
	"audio/m4a":   "audio/mp4",
	"audio/x-m4a": "audio/mp4",
}

// Upload is a downloaded attachment.
type Upload struct {
	Name string
	MIME string
	Data []byte
}

// AttachmentSaver stores attachment bytes and returns the stored name.
type AttachmentSaver interface {
	SaveAttachment(originalName string, data []byte) (string, error)
}

// Materializer converts uploads into fragments.
type Materializer struct {
	store  AttachmentSaver
	logger *slog.Logger
}

// New creates a Materializer.
func New(store AttachmentSaver, logger *slog.Logger) *Materializer {
	return &Materializer{store: store, logger: logger}
}

// Materialize processes uploads in order. Binary content with a supported
// MIME type is saved and passed through as data; small text is inlined; large
// text and unrecognised binaries are saved and referenced by link only.
// A failure to save one attachment aborts the whole call.
func (m *Materializer) Materialize(uploads []Upload) ([]agent.Fragment, error) {
	frags := make([]agent.Fragment, 0, len(uploads))
	for _, up := range uploads {
		mt := NormalizeMIME(up.MIME, up.Data)

		switch {
		case binaryMIMEs[mt]:
			stored, err := m.save(up)
			if err != nil {
				return nil, err
			}
			link := "[[" + stored + "]]"
			if strings.HasPrefix(mt, "image/") {
				link = "!" + link
			}
			frags = append(frags, agent.Fragment{Name: up.Name, MIME: mt, Data: up.Data, Link: link})

		case isText(mt, up.Data) && len(up.Data) <= InlineMaxBytes:
			frags = append(frags, agent.Fragment{
				Name: up.Name,
				MIME: mt,
				Text: fmt.Sprintf("### %s\n```\n%s\n```", up.Name, strings.TrimRight(string(up.Data), "\n")),
			})

		default:
			stored, err := m.save(up)
			if err != nil {
				return nil, err
			}
			frags = append(frags, agent.Fragment{Name: up.Name, MIME: mt, Link: "[[" + stored + "]]"})
		}
	}
	return frags, nil
}

func (m *Materializer) save(up Upload) (string, error) {
	stored, err := m.store.SaveAttachment(up.Name, up.Data)
	if err != nil {
		return "", fmt.Errorf("ingest: save %s: %w", up.Name, err)
	}
	m.logger.Info("ingest: attachment saved",
		slog.String("name", up.Name),
		slog.String("stored", stored),
		slog.Int("bytes", len(up.Data)))
	return stored, nil
}

// NormalizeMIME lowercases, strips parameters and resolves aliases. An empty
// or unparsable type is sniffed from data.
func NormalizeMIME(declared string, data []byte) string {
	mt, _, err := mime.ParseMediaType(strings.TrimSpace(declared))
	if err != nil || mt == "" || mt == "application/octet-stream" {
		mt, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	mt = strings.ToLower(mt)
	if alias, ok := mimeAliases[mt]; ok {
		return alias
	}
	return mt
}

func isText(mt string, data []byte) bool {
	switch {
	case strings.HasPrefix(mt, "text/"):
		return utf8.Valid(data)
	case mt == "application/json", mt == "application/xml", mt == "application/yaml",
		mt == "application/x-yaml", mt == "application/javascript":
		return utf8.Valid(data)
	}
	return false
}
