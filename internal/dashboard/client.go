package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/five82/dashsync/internal/status"
)

// TokenSource supplies the bearer credential for each request.
type TokenSource interface {
	Token() string
}

// StatusFetcher fetches status documents. *Client implements it.
type StatusFetcher interface {
	FetchDashboard(ctx context.Context, light bool) (status.Snapshot, error)
	FetchLegacyStatus(ctx context.Context, light bool) (status.Snapshot, error)
}

// Ensure Client implements StatusFetcher at compile time.
var _ StatusFetcher = (*Client)(nil)

// Client talks to the dashboard HTTP API.
type Client struct {
	baseURL   *url.URL
	apiPrefix string
	http      *http.Client
	tokens    TokenSource
	userAgent string
}

const (
	defaultBaseURL   = "http://127.0.0.1:8000"
	defaultAPIPrefix = "/api"
	defaultUserAgent = "dashsync/0.1"
	requestTimeout   = 10 * time.Second
	maxErrorBody     = 64 * 1024
)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithAPIPrefix sets the path prefix of the REST API (default "/api").
func WithAPIPrefix(prefix string) Option {
	return func(c *Client) {
		c.apiPrefix = normalizePrefix(prefix)
	}
}

// NewClient builds a Client for the server at baseURL. tokens may be nil for
// unauthenticated servers.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		apiPrefix: defaultAPIPrefix,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		tokens:    tokens,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server root URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// FetchDashboard retrieves the aggregated status document from /dashboard.
func (c *Client) FetchDashboard(ctx context.Context, light bool) (status.Snapshot, error) {
	return c.fetchSnapshot(ctx, "/dashboard", light)
}

// FetchLegacyStatus retrieves the status document from the older /status/
// endpoint.
func (c *Client) FetchLegacyStatus(ctx context.Context, light bool) (status.Snapshot, error) {
	return c.fetchSnapshot(ctx, "/status/", light)
}

func (c *Client) fetchSnapshot(ctx context.Context, p string, light bool) (status.Snapshot, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	if light {
		values.Set("light", "1")
	} else {
		values.Set("light", "0")
	}
	var payload status.Snapshot
	if err := c.do(ctx, http.MethodGet, p, values, nil, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = status.Snapshot{}
	}
	return payload, nil
}

// RestartGateway asks the server to restart its gateway process.
func (c *Client) RestartGateway(ctx context.Context) (ActionResponse, error) {
	var resp ActionResponse
	err := c.do(ctx, http.MethodPost, "/actions/gateway/restart", nil, nil, &resp)
	return resp, err
}

// CreateBackup asks the server to write a backup.
func (c *Client) CreateBackup(ctx context.Context) (ActionResponse, error) {
	var resp ActionResponse
	err := c.do(ctx, http.MethodPost, "/actions/backup", nil, nil, &resp)
	return resp, err
}

// ClearLogs asks the server to truncate its logs.
func (c *Client) ClearLogs(ctx context.Context) (ActionResponse, error) {
	var resp ActionResponse
	err := c.do(ctx, http.MethodPost, "/actions/logs/clear", nil, nil, &resp)
	return resp, err
}

// FetchHistory retrieves completed tasks.
func (c *Client) FetchHistory(ctx context.Context) ([]map[string]any, error) {
	var history []map[string]any
	if err := c.do(ctx, http.MethodGet, "/tasks/history", nil, nil, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// CreateTodo creates a todo and returns the refreshed list when the server
// includes one.
func (c *Client) CreateTodo(ctx context.Context, req TodoRequest) (TaskListResponse, error) {
	if strings.TrimSpace(req.Title) == "" {
		return TaskListResponse{}, fmt.Errorf("todo title required")
	}
	var resp TaskListResponse
	err := c.do(ctx, http.MethodPost, "/tasks/todos", nil, req, &resp)
	return resp, err
}

// CompleteTodo marks a todo done.
func (c *Client) CompleteTodo(ctx context.Context, taskID string) (TaskListResponse, error) {
	if strings.TrimSpace(taskID) == "" {
		return TaskListResponse{}, fmt.Errorf("task id required")
	}
	var resp TaskListResponse
	p := "/tasks/todos/" + url.PathEscape(taskID) + "/complete"
	err := c.do(ctx, http.MethodPost, p, nil, nil, &resp)
	return resp, err
}

// ReopenTask moves a completed task back to the todo list.
func (c *Client) ReopenTask(ctx context.Context, taskID string) (TaskListResponse, error) {
	if strings.TrimSpace(taskID) == "" {
		return TaskListResponse{}, fmt.Errorf("task id required")
	}
	var resp TaskListResponse
	p := "/tasks/history/" + url.PathEscape(taskID) + "/reopen"
	err := c.do(ctx, http.MethodPost, p, nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, p string, query url.Values, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	// p is already escaped; ids inside it may carry %2F.
	escaped := path.Join(c.baseURL.EscapedPath(), c.apiPrefix, p)
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(escaped, "/") {
		escaped += "/"
	}
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		return fmt.Errorf("build request path: %w", err)
	}
	rel := &url.URL{Path: unescaped, RawPath: escaped}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Path: p, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail := errorDetail(raw)
		if resp.StatusCode == http.StatusUnauthorized {
			return &AuthError{Path: p, Detail: detail}
		}
		return &ServerError{Path: p, StatusCode: resp.StatusCode, Detail: detail}
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorDetail extracts the "detail" string FastAPI-style servers put in
// error bodies.
func errorDetail(raw []byte) string {
	if !gjson.ValidBytes(raw) {
		return ""
	}
	detail := gjson.GetBytes(raw, "detail")
	if detail.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(detail.String())
}

// ParseBaseURL normalizes a server address into a root URL. Bare host:port
// values are treated as http.
func ParseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse base_url %q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func normalizePrefix(prefix string) string {
	trimmed := strings.Trim(strings.TrimSpace(prefix), "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed
}
