// Package bookinfo looks up book metadata by ISBN in the Google Books catalog.
package bookinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultEndpoint is the Google Books volumes search endpoint.
	DefaultEndpoint = "https://www.googleapis.com/books/v1/volumes"

	// DefaultTimeout bounds a single lookup request.
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrNotFound is returned when the catalog has no item for the ISBN.
	ErrNotFound = errors.New("書籍情報が見つかりませんでした")

	// ErrLookupFailed is returned for transport and decoding failures.
	ErrLookupFailed = errors.New("書籍情報の取得に失敗しました")
)

// Book is the minimal record the post editor needs from the catalog.
// Fields the catalog does not provide are empty strings.
type Book struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Image  string `json:"image"`
}

// volumesResponse mirrors the parts of the catalog response we read.
type volumesResponse struct {
	Items []struct {
		VolumeInfo struct {
			Title      string   `json:"title"`
			Authors    []string `json:"authors"`
			ImageLinks *struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Client performs ISBN lookups. Concurrent lookups of the same ISBN share a
// single upstream request.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	group      singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the catalog endpoint (used by tests).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient sets the HTTP client used for lookups.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client with the default endpoint and timeout.
func New(opts ...Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches the first catalog item for isbn. The caller is expected to
// have checked the ISBN length already; Lookup sends whatever it is given.
//
// The shared upstream request is detached from ctx, so a caller that gives
// up only abandons its own wait.
func (c *Client) Lookup(ctx context.Context, isbn string) (Book, error) {
	ch := c.group.DoChan(isbn, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTimeout)
		defer cancel()
		return c.fetch(fetchCtx, isbn)
	})
	select {
	case <-ctx.Done():
		return Book{}, fmt.Errorf("%w: %v", ErrLookupFailed, ctx.Err())
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("book lookup shared", zap.String("isbn", isbn))
		}
		if res.Err != nil {
			return Book{}, res.Err
		}
		return res.Val.(Book), nil
	}
}

func (c *Client) fetch(ctx context.Context, isbn string) (Book, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return Book{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	q := u.Query()
	q.Set("q", "isbn:"+isbn)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Book{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("book lookup request failed", zap.String("isbn", isbn), zap.Error(err))
		return Book{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("book lookup bad status", zap.String("isbn", isbn), zap.Int("status", resp.StatusCode))
		return Book{}, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var body volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Book{}, fmt.Errorf("%w: decode: %v", ErrLookupFailed, err)
	}
	if len(body.Items) == 0 {
		return Book{}, ErrNotFound
	}

	info := body.Items[0].VolumeInfo
	book := Book{Title: info.Title}
	if len(info.Authors) > 0 {
		book.Author = info.Authors[0]
	}
	if info.ImageLinks != nil {
		book.Image = info.ImageLinks.Thumbnail
	}
	c.logger.Debug("book lookup ok", zap.String("isbn", isbn), zap.String("title", book.Title))
	return book, nil
}
