// Package client is a Go client for the taskd REST API.
//
// The client attaches the stored bearer token to every call except login
// and register. When a call fails with 401 it refreshes the token once and
// retries; if the refresh itself fails the stored token is cleared and the
// caller has to log in again.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	v1 "github.com/fyrsmithlabs/taskd/pkg/api/v1"
)

const defaultTimeout = 30 * time.Second

// Paths that never carry a token and never trigger a refresh.
const (
	pathLogin    = "/auth/login"
	pathRegister = "/auth/register"
	pathRefresh  = "/auth/refresh-token"
)

// ErrNoSession is returned by calls that need a token when none is stored.
var ErrNoSession = errors.New("not logged in")

// TokenStore persists the session token between calls.
type TokenStore interface {
	Token() string
	SetToken(token string) error
	Clear() error
}

// MemoryTokenStore keeps the token in memory. It is the default store.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryTokenStore) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *MemoryTokenStore) SetToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	return m.SetToken("")
}

// Client calls a taskd server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	limiter    *rate.Limiter

	// refreshMu serializes refreshes so concurrent 401s refresh once.
	refreshMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenStore sets where the session token is kept.
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) { c.tokens = s }
}

// WithRateLimit caps outgoing requests at r per second with the given burst.
func WithRateLimit(r float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(r), burst) }
}

// New creates a client for the server at baseURL, including any base path
// such as "http://localhost:5000/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https: %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     &MemoryTokenStore{},
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the stored session token.
func (c *Client) Token() string {
	return c.tokens.Token()
}

// StatusCode returns the HTTP status of an API error, or 0 for other errors.
func StatusCode(err error) int {
	var apiErr *v1.ErrorResponse
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

func authless(path string) bool {
	return path == pathLogin || path == pathRegister
}

// do sends one API call, refreshing the token and retrying once on 401.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	sent := c.tokens.Token()
	err := c.send(ctx, method, path, query, body, out)
	if !IsUnauthorized(err) || authless(path) || path == pathRefresh || sent == "" {
		return err
	}

	if rerr := c.refresh(ctx, sent); rerr != nil {
		return rerr
	}
	return c.send(ctx, method, path, query, body, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !authless(path) {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &v1.ErrorResponse{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(raw) > 0 && json.Unmarshal(raw, apiErr) == nil {
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	apiErr.Kind = http.StatusText(resp.StatusCode)
	apiErr.Message = strings.TrimSpace(string(raw))
	return apiErr
}

// refresh replaces the stored token. sent is the token the failed call
// used; if another goroutine already replaced it the refresh is skipped.
func (c *Client) refresh(ctx context.Context, sent string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if cur := c.tokens.Token(); cur != sent && cur != "" {
		return nil
	}

	var resp v1.TokenResponse
	if err := c.send(ctx, http.MethodPost, pathRefresh, nil, nil, &resp); err != nil {
		if cerr := c.tokens.Clear(); cerr != nil {
			return errors.Join(fmt.Errorf("refresh session: %w", err), cerr)
		}
		return fmt.Errorf("refresh session: %w", err)
	}
	return c.tokens.SetToken(resp.Token)
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) (*v1.HealthResponse, error) {
	var out v1.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login starts a session for an existing account and stores its token.
func (c *Client) Login(ctx context.Context, email string) (*v1.AuthResponse, error) {
	return c.authenticate(ctx, pathLogin, email)
}

// Register creates an account and stores its token.
func (c *Client) Register(ctx context.Context, email string) (*v1.AuthResponse, error) {
	return c.authenticate(ctx, pathRegister, email)
}

func (c *Client) authenticate(ctx context.Context, path, email string) (*v1.AuthResponse, error) {
	var out v1.AuthResponse
	if err := c.do(ctx, http.MethodPost, path, nil, v1.EmailRequest{Email: email}, &out); err != nil {
		return nil, err
	}
	if err := c.tokens.SetToken(out.Token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return &out, nil
}

// Logout forgets the stored token. Tokens are stateless, so the server is
// not contacted.
func (c *Client) Logout() error {
	return c.tokens.Clear()
}

// Profile returns the logged-in user.
func (c *Client) Profile(ctx context.Context) (*v1.User, error) {
	if c.tokens.Token() == "" {
		return nil, ErrNoSession
	}
	var out v1.User
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshToken exchanges the stored token for a fresh one.
func (c *Client) RefreshToken(ctx context.Context) (*v1.TokenResponse, error) {
	if c.tokens.Token() == "" {
		return nil, ErrNoSession
	}
	var out v1.TokenResponse
	if err := c.do(ctx, http.MethodPost, pathRefresh, nil, nil, &out); err != nil {
		return nil, err
	}
	if err := c.tokens.SetToken(out.Token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return &out, nil
}

// Session reports whether the server accepts the stored token.
func (c *Client) Session(ctx context.Context) (*v1.SessionResponse, error) {
	var out v1.SessionResponse
	if err := c.do(ctx, http.MethodGet, "/auth/session", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListParams selects a page of tasks. Zero values use the server defaults.
type ListParams struct {
	Page       int
	Limit      int
	Search     string
	OrderBy    string
	Order      string
	SortOption string
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	for key, val := range map[string]string{
		"search":     p.Search,
		"orderBy":    p.OrderBy,
		"order":      p.Order,
		"sortOption": p.SortOption,
	} {
		if val != "" {
			q.Set(key, val)
		}
	}
	return q
}

// ListTasks returns one page of the caller's tasks.
func (c *Client) ListTasks(ctx context.Context, p ListParams) (*v1.TaskPage, error) {
	var out v1.TaskPage
	if err := c.do(ctx, http.MethodGet, "/tasks", p.values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTask returns one task.
func (c *Client) GetTask(ctx context.Context, id string) (*v1.Task, error) {
	var out v1.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTask adds a task.
func (c *Client) CreateTask(ctx context.Context, req v1.CreateTaskRequest) (*v1.Task, error) {
	var out v1.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTask applies a partial update.
func (c *Client) UpdateTask(ctx context.Context, id string, req v1.UpdateTaskRequest) (*v1.Task, error) {
	var out v1.Task
	if err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil, nil)
}
