// Package httprequest provides the http action: one templated HTTP call per attempt.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/dukex/conductor/pkg/models"
	"github.com/dukex/conductor/pkg/template"
)

const maxResponseBody = 10 << 20

var (
	// ErrHTTPMethodInvalid is returned when the HTTP method is invalid.
	ErrHTTPMethodInvalid = errors.New("invalid HTTP method")
	// ErrHTTPRequestURLInvalid is returned when the URL is missing or renders empty.
	ErrHTTPRequestURLInvalid = errors.New("invalid HTTP request url")
	// ErrHTTPServerError is returned when the server answers with a 5xx status.
	ErrHTTPServerError = errors.New("server error during HTTP request")
	// ErrHTTPClientError is returned when the server answers with a 4xx status.
	ErrHTTPClientError = errors.New("client error during HTTP request")
)

var allowedMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
	http.MethodPatch, http.MethodHead, http.MethodOptions,
}

// Action performs one HTTP request. Retries and deadlines belong to the executor.
type Action struct {
	Method       string
	URL          string
	Headers      map[string]string
	Body         any
	FailOnStatus bool

	client *http.Client
}

// NewAction creates an Action from step parameters.
func NewAction(config map[string]any, client *http.Client) (*Action, error) {
	url, _ := config["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("missing or invalid 'url' in configuration: %w", ErrHTTPRequestURLInvalid)
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	method = strings.ToUpper(method)
	if !slices.Contains(allowedMethods, method) {
		return nil, fmt.Errorf("%w: %s", ErrHTTPMethodInvalid, method)
	}

	headers := make(map[string]string)

	if headersMap, ok := config["headers"].(map[string]any); ok {
		for k, v := range headersMap {
			if strVal, ok := v.(string); ok {
				headers[k] = strVal
			}
		}
	}

	failOnStatus := true
	if v, ok := config["fail_on_status"].(bool); ok {
		failOnStatus = v
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &Action{
		Method:       method,
		URL:          url,
		Headers:      headers,
		Body:         config["body"],
		FailOnStatus: failOnStatus,
		client:       client,
	}, nil
}

// Execute performs the request and returns status_code, headers and body.
func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("action_type", "http")

	req, err := a.buildRequest(ctx, &executionCtx)
	if err != nil {
		return nil, err
	}

	logger.DebugContext(ctx, "Sending HTTP request", "method", req.Method, "url", req.URL.String())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	result, err := a.processResponse(ctx, resp, logger)
	if err != nil {
		return nil, err
	}

	if a.FailOnStatus {
		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return result, fmt.Errorf("status %d: %w", resp.StatusCode, ErrHTTPServerError)
		case resp.StatusCode >= http.StatusBadRequest:
			return result, fmt.Errorf("status %d: %w", resp.StatusCode, ErrHTTPClientError)
		}
	}

	return result, nil
}

func (a *Action) buildRequest(ctx context.Context, executionCtx *models.ExecutionContext) (*http.Request, error) {
	url, err := template.RenderString(a.URL, executionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render url template: %w", err)
	}

	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrHTTPRequestURLInvalid
	}

	body, contentType, err := a.buildRequestBody(executionCtx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, a.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	for key, value := range a.Headers {
		headerValue, err := template.RenderString(value, executionCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to render header '%s' template: %w", key, err)
		}

		req.Header.Set(key, headerValue)
	}

	return req, nil
}

// buildRequestBody renders string bodies as templates and encodes any other
// value as JSON.
func (a *Action) buildRequestBody(executionCtx *models.ExecutionContext) (io.Reader, string, error) {
	switch body := a.Body.(type) {
	case nil:
		return http.NoBody, "", nil
	case string:
		if body == "" {
			return http.NoBody, "", nil
		}

		rendered, err := template.RenderString(body, executionCtx)
		if err != nil {
			return nil, "", fmt.Errorf("failed to render body template: %w", err)
		}

		contentType := "text/plain"
		if json.Valid([]byte(rendered)) {
			contentType = "application/json"
		}

		return strings.NewReader(rendered), contentType, nil
	default:
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal body: %w", err)
		}

		return strings.NewReader(string(bodyBytes)), "application/json", nil
	}
}

func (a *Action) processResponse(ctx context.Context, resp *http.Response, logger *slog.Logger) (map[string]any, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any

	if len(bodyBytes) > 0 {
		err = json.Unmarshal(bodyBytes, &body)
		if err != nil {
			body = string(bodyBytes)

			logger.DebugContext(ctx, "Response is not JSON, returning as string")
		}
	}

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	logger.InfoContext(ctx, "HTTP request completed", "status", resp.StatusCode, "body_length", len(bodyBytes))

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
		"headers":     headers,
	}, nil
}
