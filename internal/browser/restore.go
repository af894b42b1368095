package browser

import (
	"context"

	"github.com/Jake0826/filebrowser/internal/logging"
)

// restorePrefix namespaces persisted paths in the state store.
const restorePrefix = "file-browser:cwd:"

// Restore navigates to the root, then to the directory persisted under
// id, and from then on keeps the persisted path current as the user
// navigates. A missing or unreadable saved value is discarded and the
// model simply stays at the root. Restore runs at most once per model;
// later calls only return the first outcome's error state as nil.
func (m *Model) Restore(ctx context.Context, id string) error {
	if err := m.checkDisposed(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.restoreKey != "" {
		m.mu.Unlock()
		return nil
	}
	m.restoreKey = restorePrefix + id
	key := m.restoreKey
	store := m.store
	m.mu.Unlock()

	defer m.markRestored()

	if err := m.ChangeDirectory(ctx, "/"); err != nil {
		return err
	}

	if store == nil {
		return nil
	}
	saved, ok, err := store.Fetch(ctx, key)
	if err != nil {
		logging.Warn("discarding unreadable saved path", logging.Err(err))
		if rerr := store.Remove(ctx, key); rerr != nil {
			logging.Debug("could not remove saved path", logging.Err(rerr))
		}
		return nil
	}
	if !ok || saved == "" {
		return nil
	}

	if err := m.ChangeDirectory(ctx, "/"+saved); err != nil {
		// Already surfaced through ConnectionFailure; the root listing
		// from the first navigation stays in place.
		logging.Warn("could not restore saved path",
			logging.String("path", saved), logging.Err(err))
	}
	return nil
}

// Restored is closed once restoration has run to completion, whether or
// not a saved path existed.
func (m *Model) Restored() <-chan struct{} {
	return m.restored
}

func (m *Model) markRestored() {
	m.restoredOnce.Do(func() { close(m.restored) })
}
