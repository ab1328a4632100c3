// Package api is the typed client for the duckpond REST surface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionUIURL formats the proxied UI URL for a session id.
func SessionUIURL(sessionID string) string {
	return fmt.Sprintf("/notebooks/sessions/%s/ui", sessionID)
}

// Client talks to a duckpond deployment. A 401 on any call fires the
// unauthorized hook once per response; recovery (session clear plus
// redirect to login) is handled centrally by the shell, not per call.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger

	mu             sync.RWMutex
	apiKey         string
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithAPIKey sets the key sent in the X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithUnauthorizedHook registers the global 401 handler.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New creates a Client for baseURL (scheme and host, no trailing slash
// required).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAPIKey replaces the key used for subsequent requests.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	c.mu.RLock()
	apiKey := c.apiKey
	c.mu.RUnlock()
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFrom(req, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) errorFrom(req *http.Request, resp *http.Response) error {
	var body struct {
		Detail string `json:"detail"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &body); err != nil || body.Detail == "" {
		body.Detail = strings.TrimSpace(string(raw))
	}

	apiErr := &Error{Status: resp.StatusCode, Detail: body.Detail}
	if resp.StatusCode == http.StatusUnauthorized {
		c.mu.RLock()
		hook := c.onUnauthorized
		c.mu.RUnlock()
		if hook != nil {
			hook()
		}
	}
	c.logger.Debug("request failed",
		"method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "detail", body.Detail)
	return apiErr
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Login authenticates with an API key via POST /api/auth/login.
func (c *Client) Login(ctx context.Context, apiKey string) (*LoginResponse, error) {
	body := map[string]any{"api_key": apiKey}
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends the server-side session via POST /api/auth/logout.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// AuthMe returns the authenticated identity via GET /api/auth/me.
func (c *Client) AuthMe(ctx context.Context) (*MeResponse, error) {
	var out MeResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Account returns GET /api/accounts/me.
func (c *Client) Account(ctx context.Context) (*AccountInfo, error) {
	var out AccountInfo
	if err := c.do(ctx, http.MethodGet, "/api/accounts/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAPIKey mints a new key via POST /api/accounts/me/api-keys.
func (c *Client) CreateAPIKey(ctx context.Context, name string) (*CreateAPIKeyResponse, error) {
	body := map[string]any{"name": name}
	var out CreateAPIKeyResponse
	if err := c.do(ctx, http.MethodPost, "/api/accounts/me/api-keys", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAPIKey revokes a key via DELETE /api/accounts/me/api-keys/{id}.
func (c *Client) DeleteAPIKey(ctx context.Context, keyID string) error {
	return c.do(ctx, http.MethodDelete, "/api/accounts/me/api-keys/"+url.PathEscape(keyID), nil, nil)
}

// ListNotebooks returns GET /notebooks/files.
func (c *Client) ListNotebooks(ctx context.Context) ([]NotebookFile, error) {
	var out []NotebookFile
	if err := c.do(ctx, http.MethodGet, "/notebooks/files", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateNotebook creates a file via POST /notebooks/files. Empty content
// lets the server apply its default template.
func (c *Client) CreateNotebook(ctx context.Context, filename, content string) (*NotebookFile, error) {
	body := map[string]any{"filename": filename}
	if content != "" {
		body["content"] = content
	}
	var out NotebookFile
	if err := c.do(ctx, http.MethodPost, "/notebooks/files", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReadNotebook returns the content of GET /notebooks/files/{name}.
func (c *Client) ReadNotebook(ctx context.Context, filename string) (string, error) {
	var out struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if err := c.do(ctx, http.MethodGet, "/notebooks/files/"+url.PathEscape(filename), nil, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// UpdateNotebook replaces content via PUT /notebooks/files/{name}.
func (c *Client) UpdateNotebook(ctx context.Context, filename, content string) error {
	body := map[string]any{"filename": filename, "content": content}
	return c.do(ctx, http.MethodPut, "/notebooks/files/"+url.PathEscape(filename), body, nil)
}

// DeleteNotebook removes a file via DELETE /notebooks/files/{name}.
func (c *Client) DeleteNotebook(ctx context.Context, filename string) error {
	return c.do(ctx, http.MethodDelete, "/notebooks/files/"+url.PathEscape(filename), nil, nil)
}

// ListSessions returns GET /notebooks/sessions.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var out []Session
	if err := c.do(ctx, http.MethodGet, "/notebooks/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession starts a session via POST /notebooks/sessions.
func (c *Client) CreateSession(ctx context.Context, notebookPath string) (*CreateSessionResponse, error) {
	body := map[string]any{"notebook_path": notebookPath}
	var out CreateSessionResponse
	if err := c.do(ctx, http.MethodPost, "/notebooks/sessions", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession returns GET /notebooks/sessions/{id}.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodGet, "/notebooks/sessions/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TerminateSession stops a session via DELETE /notebooks/sessions/{id}.
func (c *Client) TerminateSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/notebooks/sessions/"+url.PathEscape(sessionID), nil, nil)
}

// NotebookServiceStatus returns GET /notebooks/status.
func (c *Client) NotebookServiceStatus(ctx context.Context) (*ServiceStatus, error) {
	var out ServiceStatus
	if err := c.do(ctx, http.MethodGet, "/notebooks/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Query executes SQL via POST /api/query.
func (c *Client) Query(ctx context.Context, sql string, limit int) (*QueryResult, error) {
	body := map[string]any{"query": sql}
	if limit > 0 {
		body["limit"] = limit
	}
	var out QueryResult
	if err := c.do(ctx, http.MethodPost, "/api/query", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends a multipart POST /api/upload with fields "file" and
// "dataset_name".
func (c *Client) Upload(ctx context.Context, datasetName, filename string, r io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("api: upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("api: upload copy: %w", err)
	}
	if err := mw.WriteField("dataset_name", datasetName); err != nil {
		return nil, fmt.Errorf("api: upload field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("api: upload finalize: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("api: upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResult
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
