package contents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/Jake0826/filebrowser/internal/backoff"
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retry   backoff.RetryConfig

	// DisableChunked marks the backend as unable to accept chunked saves.
	DisableChunked bool
}

// Client talks to the remote contents service.
type Client struct {
	baseURL        string
	token          string
	httpClient     *http.Client
	retry          backoff.RetryConfig
	disableChunked bool
}

// New creates a contents client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = backoff.DefaultRetryConfig()
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retry:          cfg.Retry,
		disableChunked: cfg.DisableChunked,
	}
}

// SupportsChunked reports whether the destination accepts chunked saves.
func (c *Client) SupportsChunked(path string) bool {
	return !c.disableChunked
}

func (c *Client) contentsURL(p string) string {
	u := url.URL{Path: "/api/contents/" + NormalizePath(p)}
	return c.baseURL + u.EscapedPath()
}

func (c *Client) applyAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
}

// do issues one request and decodes a JSON entry from a 2xx response.
// 5xx responses and network failures are marked retryable.
func (c *Client) do(req *http.Request, want int) (*Entry, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, backoff.Retryable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want && resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil {
			apiErr.Message = body.Message
		}
		if resp.StatusCode >= 500 {
			return nil, backoff.Retryable(apiErr)
		}
		return nil, apiErr
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var entry Entry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &entry, nil
}

// Get fetches the entry at p, with children or body when opts.Content is set.
func (c *Client) Get(ctx context.Context, p string, opts GetOptions) (*Entry, error) {
	return backoff.DoWithResult(ctx, c.retry, func() (*Entry, error) {
		u := c.contentsURL(p)
		if opts.Content {
			u += "?content=1"
		} else {
			u += "?content=0"
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		c.applyAuth(req)
		return c.do(req, http.StatusOK)
	})
}

// Save writes file content (or one chunk of it) at p.
// Chunked saves are never retried; replaying a piece would corrupt the
// destination, so transport errors surface to the caller instead.
func (c *Client) Save(ctx context.Context, p string, save SaveRequest) (*Entry, error) {
	body, err := json.Marshal(save)
	if err != nil {
		return nil, fmt.Errorf("encode save request: %w", err)
	}

	issue := func() (*Entry, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(p), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.applyAuth(req)
		return c.do(req, http.StatusCreated)
	}

	if save.Chunk != nil {
		entry, err := issue()
		if err != nil && backoff.IsRetryable(err) {
			return nil, fmt.Errorf("save chunk %d: %w", save.Chunk.Index, err)
		}
		return entry, err
	}
	return backoff.DoWithResult(ctx, c.retry, issue)
}

// Delete removes the entry at p. A 404 is treated as already deleted.
func (c *Client) Delete(ctx context.Context, p string) error {
	err := backoff.Do(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.contentsURL(p), nil)
		if err != nil {
			return err
		}
		c.applyAuth(req)
		_, err = c.do(req, http.StatusNoContent)
		return err
	})
	if IsNotFound(err) {
		return nil
	}
	return err
}

// DownloadURL returns the direct download URL for p.
func (c *Client) DownloadURL(p string) string {
	u := url.URL{Path: "/files/" + NormalizePath(p)}
	return c.baseURL + u.EscapedPath()
}

// NormalizePath cleans p into the service's canonical form: no leading
// or trailing slash, "" for the root.
func NormalizePath(p string) string {
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// ResolvePath resolves target against base. "." keeps base, ".."
// segments ascend, absolute targets replace base entirely.
func ResolvePath(base, target string) string {
	if target == "" {
		return ""
	}
	if target == "." {
		return NormalizePath(base)
	}
	if strings.HasPrefix(target, "/") {
		return NormalizePath(target)
	}
	return NormalizePath(path.Join(NormalizePath(base), target))
}

// LocalPath strips any drive prefix ("drive:a/b" becomes "a/b") and
// normalizes the remainder.
func LocalPath(p string) string {
	if i := strings.Index(p, ":"); i >= 0 {
		p = p[i+1:]
	}
	return NormalizePath(p)
}

// ParentDir returns the directory containing p ("" for top-level paths).
func ParentDir(p string) string {
	p = NormalizePath(p)
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}
