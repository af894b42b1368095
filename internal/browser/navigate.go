package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jake0826/filebrowser/internal/contents"
	"github.com/Jake0826/filebrowser/internal/logging"
	"github.com/Jake0826/filebrowser/internal/metrics"
)

// ChangeDirectory resolves target against the current path ("." keeps
// the current or pending path, ".." ascends) and fetches its listing.
// Concurrent calls for the same resolved target collapse onto the one
// in-flight fetch; a call for a different target waits for the pending
// fetch to finish before issuing its own, so the model never has two
// fetches in flight.
func (m *Model) ChangeDirectory(ctx context.Context, target string) error {
	for {
		if err := m.checkDisposed(); err != nil {
			return err
		}

		m.mu.Lock()
		base := m.path
		if m.pending != nil && target == "." {
			base = m.pending.key
		}
		resolved := contents.ResolvePath(base, target)

		if p := m.pending; p != nil {
			m.mu.Unlock()
			if p.key == resolved {
				// Attach: every caller observes the same result.
				select {
				case <-p.done:
					return p.err
				case <-ctx.Done():
					return ctx.Err()
				case <-m.ctx.Done():
					return ErrDisposed
				}
			}
			// Different target: await the pending fetch, then retry.
			select {
			case <-p.done:
			case <-ctx.Done():
				return ctx.Err()
			case <-m.ctx.Done():
				return ErrDisposed
			}
			continue
		}

		p := &pendingFetch{key: resolved, done: make(chan struct{})}
		m.pending = p
		m.mu.Unlock()
		return m.runFetch(ctx, p)
	}
}

type fetchResult struct {
	oldPath string
	newPath string
}

// runFetch owns the single in-flight fetch slot. On a not-found error
// for a non-root target it reports the failure and retries the root
// exactly once.
func (m *Model) runFetch(ctx context.Context, p *pendingFetch) error {
	res, err := m.fetch(ctx, p.key)

	var fallbackErr error
	if err != nil && contents.IsNotFound(err) && p.key != "" {
		fallbackErr = err
		logging.Warn("directory not found, falling back to root",
			logging.String("path", p.key))
		res, err = m.fetch(ctx, "")
	}

	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
	p.err = err
	close(p.done)

	// Signals fire only after the pending slot is released, so a
	// handler may navigate synchronously without deadlocking.
	if fallbackErr != nil {
		m.ConnectionFailure.Emit(fallbackErr)
	}
	if err != nil {
		if !errors.Is(err, ErrDisposed) {
			m.ConnectionFailure.Emit(err)
		}
		return err
	}

	if res.oldPath != res.newPath {
		m.persistPath(res.newPath)
		m.PathChanged.Emit(PathChange{Old: res.oldPath, New: res.newPath})
	}
	m.Refreshed.Emit(struct{}{})
	return nil
}

// fetch performs one listing fetch and applies it. Cached state is
// only replaced on success, so an error leaves the model untouched.
func (m *Model) fetch(ctx context.Context, key string) (fetchResult, error) {
	var res fetchResult
	if err := m.checkDisposed(); err != nil {
		return res, err
	}

	start := time.Now()
	entry, err := m.contents.Get(ctx, key, contents.GetOptions{Content: true})
	metrics.RecordDirectoryFetch(time.Since(start), err == nil)
	if err != nil {
		return res, err
	}
	if err := m.checkDisposed(); err != nil {
		return res, err
	}
	if !entry.IsDir() {
		return res, fmt.Errorf("not a directory: %q", key)
	}

	m.refreshSessions(ctx)
	if err := m.checkDisposed(); err != nil {
		return res, err
	}

	newPath := contents.NormalizePath(entry.Path)

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return res, ErrDisposed
	}
	res.oldPath = m.path
	res.newPath = newPath
	m.path = newPath
	m.entries = entry.Content
	m.reconcileLocked()
	n := len(m.sessionList)
	m.mu.Unlock()

	metrics.SetSessionsRetained(n)
	return res, nil
}

// persistPath saves the new path under the restoration key, when one
// has been set and a store is attached. Best effort.
func (m *Model) persistPath(path string) {
	m.mu.Lock()
	key := m.restoreKey
	store := m.store
	m.mu.Unlock()
	if key == "" || store == nil {
		return
	}
	if err := store.Save(m.ctx, key, path); err != nil {
		logging.Debug("could not persist last path", logging.Err(err))
	}
}
