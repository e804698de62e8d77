// Package postsapi is an HTTP client for the RingsLog posts API.
package postsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/ringslog/submit"
)

// DefaultTimeout bounds a single API call. Image payloads can be large, so
// this is more generous than the book lookup.
const DefaultTimeout = 30 * time.Second

// ErrNotFound is returned by GetPost for an unknown uid.
var ErrNotFound = errors.New("postsapi: post not found")

// Post is the full post record returned by GetPost.
type Post struct {
	UID       string    `json:"uid"`
	UserID    string    `json:"userId"`
	ISBN      string    `json:"isbn"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type getResponse struct {
	Success bool   `json:"success"`
	Post    *Post  `json:"post"`
	Message string `json:"message"`
}

type listResponse struct {
	Success bool   `json:"success"`
	Posts   []Post `json:"posts"`
	Message string `json:"message"`
}

// Client talks to a posts API rooted at BaseURL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for the API at baseURL (e.g. "https://ringslog.example").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ submit.Poster = (*Client)(nil)

// CreatePost sends POST /api/posts.
func (c *Client) CreatePost(ctx context.Context, p submit.Payload) (submit.CreateResult, error) {
	var res submit.CreateResult
	err := c.do(ctx, http.MethodPost, "/api/posts", p.AccessToken, p, &res)
	return res, err
}

// UpdatePost sends PUT /api/posts/:uid.
func (c *Client) UpdatePost(ctx context.Context, p submit.Payload) (submit.UpdateResult, error) {
	var res submit.UpdateResult
	if p.PostID == "" {
		return res, errors.New("postsapi: update without post id")
	}
	err := c.do(ctx, http.MethodPut, "/api/posts/"+url.PathEscape(p.PostID), p.AccessToken, p, &res)
	return res, err
}

// GetPost fetches a single post.
func (c *Client) GetPost(ctx context.Context, uid string) (Post, error) {
	var res getResponse
	if err := c.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(uid), "", nil, &res); err != nil {
		return Post{}, err
	}
	if !res.Success || res.Post == nil {
		return Post{}, ErrNotFound
	}
	return *res.Post, nil
}

// ListPosts fetches every post, newest first.
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	var res listResponse
	if err := c.do(ctx, http.MethodGet, "/api/posts", "", nil, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("postsapi: list posts: %s", res.Message)
	}
	return res.Posts, nil
}

// do performs one request. A JSON body with a success flag is decoded even
// for 4xx responses so callers see {success:false} rather than an error.
func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("postsapi: encode: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("postsapi: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("postsapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("posts api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return ErrNotFound
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("postsapi: %s %s: status %d", method, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("postsapi: decode %s %s (status %d): %w", method, path, resp.StatusCode, err)
	}
	return nil
}
