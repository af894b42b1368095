// Package sse reads server-sent event streams with automatic reconnect.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Jake0826/filebrowser/internal/logging"
)

// Event is one server-sent event.
type Event struct {
	Type string
	Data json.RawMessage
}

// Stream subscribes to a single SSE endpoint.
type Stream struct {
	url          string
	token        string
	httpClient   *http.Client
	reconnectMin time.Duration
	reconnectMax time.Duration
}

// NewStream creates a stream for the given endpoint URL.
func NewStream(url, token string) *Stream {
	return &Stream{
		url:   url,
		token: token,
		httpClient: &http.Client{
			Timeout: 0, // SSE connections stay open
		},
		reconnectMin: 1 * time.Second,
		reconnectMax: 30 * time.Second,
	}
}

// Subscribe connects to the endpoint and returns a channel of events.
// The connection is re-established with exponential delay until ctx is
// cancelled; both channels close on cancellation.
func (s *Stream) Subscribe(ctx context.Context) (<-chan Event, <-chan error) {
	events := make(chan Event, 100)
	errs := make(chan error, 1)

	go s.subscribeLoop(ctx, events, errs)

	return events, errs
}

func (s *Stream) subscribeLoop(ctx context.Context, events chan<- Event, errs chan<- error) {
	defer close(events)
	defer close(errs)

	delay := s.reconnectMin

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := s.connect(ctx, events)
		if ctx.Err() != nil {
			return
		}

		logging.Warn("event stream disconnected",
			logging.String("url", s.url),
			logging.Err(err),
			logging.Duration("reconnect_in", delay))

		select {
		case errs <- err:
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > s.reconnectMax {
			delay = s.reconnectMax
		}
	}
}

func (s *Stream) connect(ctx context.Context, events chan<- Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.token != "" {
		req.Header.Set("Authorization", "token "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var eventType string
	var data string

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := scanner.Text()
		if line == "" {
			if data != "" {
				select {
				case events <- Event{Type: eventType, Data: json.RawMessage(data)}:
				default:
					logging.Debug("event dropped, channel full")
				}
			}
			eventType = ""
			data = ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return fmt.Errorf("connection closed")
}
