package contents

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Jake0826/filebrowser/internal/logging"
	"github.com/Jake0826/filebrowser/internal/sse"
)

// Feed delivers entry-change notifications from the contents service.
type Feed struct {
	stream *sse.Stream
}

// NewFeed creates a change feed for the service behind cfg.
func NewFeed(cfg Config) *Feed {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	return &Feed{
		stream: sse.NewStream(base+"/api/events/contents", cfg.Token),
	}
}

// Subscribe returns a channel of change events. The channel closes when
// ctx is cancelled; malformed events are dropped.
func (f *Feed) Subscribe(ctx context.Context) <-chan ChangeEvent {
	out := make(chan ChangeEvent, 100)

	events, errs := f.stream.Subscribe(ctx)
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
				var change ChangeEvent
				if err := json.Unmarshal(ev.Data, &change); err != nil {
					logging.Debug("dropping malformed change event", logging.Err(err))
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
