package api

import (
	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
)

// MessageRequest is an inbound chat message.
type MessageRequest struct {
	User        string              `json:"user" example:"U024BE7LH"`
	Text        string              `json:"text" example:"remind me to call the plumber tomorrow"`
	History     []agent.Turn        `json:"history,omitempty"`
	Attachments []AttachmentPayload `json:"attachments,omitempty"`
}

// AttachmentPayload is an inline attachment; Data is base64 in JSON.
type AttachmentPayload struct {
	Name string `json:"name" example:"photo.jpg" validate:"required"`
	MIME string `json:"mime" example:"image/jpeg"`
	Data []byte `json:"data" validate:"required"`
}

// MessageResponse is the reply sent back to the chat thread.
type MessageResponse = agent.Result

// DirectiveRequest is the request body for adding a directive.
type DirectiveRequest struct {
	Text string `json:"text" example:"Always tag recipes with cuisine" validate:"required"`
}

// DirectivesResponse lists directives in 1-based order.
type DirectivesResponse struct {
	Directives []string `json:"directives" validate:"required"`
}

// RemoveDirectiveResponse reports a removed directive and the remaining list.
type RemoveDirectiveResponse struct {
	Removed    string   `json:"removed"`
	Directives []string `json:"directives" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.NoteMatch `json:"results" validate:"required"`
}

// ProjectsResponse lists project names.
type ProjectsResponse struct {
	Projects []string `json:"projects" validate:"required"`
}

// UploadResponse describes a stored attachment.
type UploadResponse struct {
	Filename string `json:"filename" example:"photo-1.jpg"`
	Size     int    `json:"size"`
	URL      string `json:"url" example:"/api/attachments/photo-1.jpg"`
}

// UsageResponse holds ledger totals per agent.
type UsageResponse struct {
	Since  string             `json:"since"`
	Agents []index.AgentUsage `json:"agents" validate:"required"`
}
