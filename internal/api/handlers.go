package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/ingest"
)

// BrainErrorReply is sent to the chat thread when handling a message fails.
// The cause is only logged.
const BrainErrorReply = "⚠️ Brain Error: something went wrong while processing your message. Please try again."

const defaultUsageWindow = 24 * time.Hour

// Handler holds API route handlers.
type Handler struct {
	d       Deps
	allowed map[string]struct{}
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{d: d}
	if len(d.AllowedUsers) > 0 {
		h.allowed = make(map[string]struct{}, len(d.AllowedUsers))
		for _, u := range d.AllowedUsers {
			h.allowed[u] = struct{}{}
		}
	}
	return h
}

// PostMessage handles POST /api/messages.
//
//	@Summary		Route a chat message to a handler
//	@Tags			messages
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MessageRequest	true	"Inbound message"
//	@Success		200		{object}	MessageResponse
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Failure		502		{object}	MessageResponse
//	@Security		BearerAuth
//	@Router			/messages [post]
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if h.allowed != nil {
		if _, ok := h.allowed[req.User]; !ok {
			h.d.Logger.Warn("message from unauthorized user", slog.String("user", req.User))
			writeJSON(w, http.StatusForbidden, errorBody("user not allowed"))
			return
		}
	}
	if strings.TrimSpace(req.Text) == "" && len(req.Attachments) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("text or attachments are required"))
		return
	}

	uploads := make([]ingest.Upload, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		uploads = append(uploads, ingest.Upload{Name: a.Name, MIME: a.MIME, Data: a.Data})
	}
	frags, err := h.d.Ingest.Materialize(uploads)
	if err != nil {
		h.brainError(w, req.User, err)
		return
	}

	mc := &agent.MessageContext{
		RawText:     req.Text,
		Attachments: frags,
		History:     req.History,
		RouterData:  map[string]any{},
	}
	res, err := h.d.Router.Route(r.Context(), mc)
	if err != nil {
		h.brainError(w, req.User, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) brainError(w http.ResponseWriter, user string, err error) {
	h.d.Logger.Error("message processing failed",
		slog.String("user", user),
		slog.String("error", err.Error()))
	writeJSON(w, http.StatusBadGateway, MessageResponse{ResponseText: BrainErrorReply})
}

// ListDirectives handles GET /api/directives.
//
//	@Summary		List directives
//	@Tags			directives
//	@Produce		json
//	@Success		200	{object}	DirectivesResponse
//	@Security		BearerAuth
//	@Router			/directives [get]
func (h *Handler) ListDirectives(w http.ResponseWriter, _ *http.Request) {
	list, err := h.d.Vault.Directives()
	if err != nil {
		writeError(w, h.d.Logger, "list directives", err)
		return
	}
	writeJSON(w, http.StatusOK, DirectivesResponse{Directives: nonNil(list)})
}

// AddDirective handles POST /api/directives.
//
//	@Summary		Append a directive
//	@Tags			directives
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DirectiveRequest	true	"Directive"
//	@Success		201		{object}	DirectivesResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/directives [post]
func (h *Handler) AddDirective(w http.ResponseWriter, r *http.Request) {
	var req DirectiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	list, err := h.d.Vault.AddDirective(req.Text)
	if err != nil {
		writeError(w, h.d.Logger, "add directive", err)
		return
	}
	writeJSON(w, http.StatusCreated, DirectivesResponse{Directives: list})
}

// RemoveDirective handles DELETE /api/directives/{index}.
//
//	@Summary		Remove a directive by 1-based index
//	@Tags			directives
//	@Produce		json
//	@Param			index	path		int	true	"1-based index"
//	@Success		200		{object}	RemoveDirectiveResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/directives/{index} [delete]
func (h *Handler) RemoveDirective(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(strings.TrimPrefix(chi.URLParam(r, "index"), "#"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("index must be an integer"))
		return
	}
	removed, ok, list, err := h.d.Vault.RemoveDirective(idx)
	if err != nil {
		writeError(w, h.d.Logger, "remove directive", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody(fmt.Sprintf("no directive #%d", idx)))
		return
	}
	writeJSON(w, http.StatusOK, RemoveDirectiveResponse{Removed: removed, Directives: nonNil(list)})
}

// Search handles GET /api/search.
//
//	@Summary		Keyword search over note filenames and frontmatter
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	false	"Comma-separated keywords"
//	@Param			folder	query		string	false	"Folder filter, repeatable"
//	@Success		200		{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var keywords []string
	for _, v := range q["q"] {
		for _, k := range strings.Split(v, ",") {
			// Trailing commas in the query are not keywords.
			if k = strings.TrimSpace(k); k != "" {
				keywords = append(keywords, k)
			}
		}
	}
	results, err := h.d.Vault.SearchNotes(keywords, q["folder"])
	if err != nil {
		writeError(w, h.d.Logger, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: nonNil(results)})
}

// Projects handles GET /api/projects.
//
//	@Summary		List project names
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	ProjectsResponse
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *Handler) Projects(w http.ResponseWriter, _ *http.Request) {
	projects, err := h.d.Vault.ListProjects()
	if err != nil {
		writeError(w, h.d.Logger, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectsResponse{Projects: nonNil(projects)})
}

// Usage handles GET /api/usage.
//
//	@Summary		Routing ledger totals per agent
//	@Tags			usage
//	@Produce		json
//	@Param			since	query		string	false	"Window as a Go duration, default 24h"
//	@Success		200		{object}	UsageResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/usage [get]
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	window := defaultUsageWindow
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("since must be a positive duration like 24h"))
			return
		}
		window = d
	}
	usage, err := h.d.Usage.UsageSince(r.Context(), time.Now().Add(-window))
	if err != nil {
		writeError(w, h.d.Logger, "usage", err)
		return
	}
	writeJSON(w, http.StatusOK, UsageResponse{Since: window.String(), Agents: usage})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
