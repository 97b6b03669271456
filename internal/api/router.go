package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/ingest"
	"github.com/starford/ansuz/internal/models"
)

// MessageRouter dispatches one message to a handler.
type MessageRouter interface {
	Route(ctx context.Context, mc *agent.MessageContext) (*agent.Result, error)
}

// Materializer turns uploads into prompt fragments.
type Materializer interface {
	Materialize(uploads []ingest.Upload) ([]agent.Fragment, error)
}

// Vault is the subset of the vault store served over HTTP.
type Vault interface {
	SearchNotes(keywords, folders []string) ([]models.NoteMatch, error)
	ListProjects() ([]string, error)
	Directives() ([]string, error)
	AddDirective(text string) ([]string, error)
	RemoveDirective(index int) (string, bool, []string, error)
	SaveAttachment(originalName string, data []byte) (string, error)
	ReadAttachment(storedName string) ([]byte, error)
}

// UsageSource reports ledger totals.
type UsageSource interface {
	UsageSince(ctx context.Context, since time.Time) ([]index.AgentUsage, error)
}

// Deps are the collaborators of the HTTP API. Usage and Events may be nil.
type Deps struct {
	Router       MessageRouter
	Ingest       Materializer
	Vault        Vault
	Usage        UsageSource
	Events       http.Handler
	AllowedUsers []string
	Logger       *slog.Logger
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Chat ingress.
	r.Post("/messages", h.PostMessage)

	// Directives.
	r.Get("/directives", h.ListDirectives)
	r.Post("/directives", h.AddDirective)
	r.Delete("/directives/{index}", h.RemoveDirective)

	// Vault reads.
	r.Get("/search", h.Search)
	r.Get("/projects", h.Projects)

	// Attachments.
	r.Post("/attachments", h.UploadAttachment)
	r.Get("/attachments/{name}", h.ServeAttachment)

	if d.Usage != nil {
		r.Get("/usage", h.Usage)
	}

	// SSE endpoint (protected by same auth middleware).
	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
