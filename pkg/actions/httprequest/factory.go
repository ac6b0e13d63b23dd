package httprequest

import (
	"context"
	"net/http"

	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/protocol"
)

// ActionFactory creates http actions.
type ActionFactory struct {
	client *http.Client
}

// NewActionFactory creates a factory using http.DefaultClient.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{client: http.DefaultClient}
}

// NewActionFactoryWithClient creates a factory sending requests through client.
func NewActionFactoryWithClient(client *http.Client) *ActionFactory {
	return &ActionFactory{client: client}
}

// Create creates a new Action from the given parameters.
func (h *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	return NewAction(config, h.client)
}

// ID returns the action type.
func (h *ActionFactory) ID() models.ActionType {
	return models.ActionTypeHTTP
}

// Name returns the name of the action.
func (h *ActionFactory) Name() string {
	return "HTTP Request"
}

// Description returns a brief description of the action.
func (h *ActionFactory) Description() string {
	return "Performs an HTTP request to a specified URL with optional headers and body."
}

// Schema returns the JSON schema for configuring this action.
func (h *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "The URL to send the request to. Supports templating.",
				"examples": []string{
					"https://api.example.com/users",
					"https://api.example.com/users/{{.steps.lookup.body.id}}",
					"{{.vars.base_url}}/callback",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method to use",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS", "get", "post", "put", "delete", "patch", "head", "options"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "HTTP headers to include in the request. Values support templating.",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
			"body": map[string]any{
				"description": "Request body. Strings are templates; objects and arrays are sent as JSON.",
				"type":        []string{"string", "object", "array"},
			},
			"fail_on_status": map[string]any{
				"type":        "boolean",
				"description": "Treat 4xx and 5xx responses as failures",
				"default":     true,
			},
		},
		"required":             []string{"url"},
		"additionalProperties": false,
	}
}
