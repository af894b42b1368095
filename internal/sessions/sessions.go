// Package sessions provides the compute-session registry client and the
// reconciliation of registry sessions against directory listings.
package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Jake0826/filebrowser/internal/backoff"
	"github.com/Jake0826/filebrowser/internal/logging"
	"github.com/Jake0826/filebrowser/internal/sse"
)

// Kernel identifies the kernel backing a session.
type Kernel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session is one active compute session from the registry.
type Session struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Name   string `json:"name,omitempty"`
	Type   string `json:"type,omitempty"`
	Kernel Kernel `json:"kernel"`
}

// Config holds registry client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retry   backoff.RetryConfig
}

// Client talks to the session registry.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      backoff.RetryConfig
}

// New creates a registry client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = backoff.DefaultRetryConfig()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      cfg.Retry,
	}
}

// Running returns a snapshot of all active sessions.
func (c *Client) Running(ctx context.Context) ([]Session, error) {
	return backoff.DoWithResult(ctx, c.retry, func() ([]Session, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sessions", nil)
		if err != nil {
			return nil, err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "token "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, backoff.Retryable(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("session registry returned %d", resp.StatusCode)
			if resp.StatusCode >= 500 {
				return nil, backoff.Retryable(err)
			}
			return nil, err
		}

		var list []Session
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			return nil, fmt.Errorf("decode sessions: %w", err)
		}
		return list, nil
	})
}

// Subscribe returns a channel that delivers a fresh session snapshot on
// every registry change. When the feed event carries the snapshot it is
// used directly; otherwise one is fetched via Running. Events whose
// snapshot cannot be obtained are dropped.
func (c *Client) Subscribe(ctx context.Context) <-chan []Session {
	out := make(chan []Session, 16)

	stream := sse.NewStream(c.baseURL+"/api/events/sessions", c.token)
	events, errs := stream.Subscribe(ctx)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-errs:
				if !ok {
					errs = nil
				}
			case ev, ok := <-events:
				if !ok {
					return
				}
				snapshot, err := c.snapshotFrom(ctx, ev.Data)
				if err != nil {
					logging.Debug("session snapshot unavailable after change event",
						logging.Err(err))
					continue
				}
				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// snapshotFrom decodes a feed payload into a session list. The registry
// usually emits bare change notifications rather than full snapshots,
// so anything that is not a list triggers a re-fetch; subscribers only
// ever receive real snapshots.
func (c *Client) snapshotFrom(ctx context.Context, data json.RawMessage) ([]Session, error) {
	if len(data) > 0 {
		var snapshot []Session
		if err := json.Unmarshal(data, &snapshot); err == nil {
			return snapshot, nil
		}
	}
	return c.Running(ctx)
}
