package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"

	"github.com/Jake0826/filebrowser/internal/contents"
	"github.com/Jake0826/filebrowser/internal/logging"
	"github.com/Jake0826/filebrowser/internal/metrics"
)

const (
	// LargeFileThreshold is the size above which an upload needs user
	// confirmation and a chunk-capable backend.
	LargeFileThreshold int64 = 15 * 1024 * 1024

	// ChunkSize is the payload size of one chunked save.
	ChunkSize int64 = 1024 * 1024
)

// Upload stores size bytes from r as name inside the current directory.
// Files above ChunkSize go up in chunked saves when the backend supports
// them; files above LargeFileThreshold additionally require chunked
// support and user confirmation. Progress is reported through
// UploadChanged as start, zero or more strictly-growing updates, and a
// terminal finish or failure.
func (m *Model) Upload(ctx context.Context, name string, r io.Reader, size int64) (*contents.Entry, error) {
	if err := m.checkDisposed(); err != nil {
		return nil, err
	}
	if name == "" || path.Base(name) != name {
		return nil, fmt.Errorf("invalid upload name %q", name)
	}

	large := size > LargeFileThreshold
	chunked := size > ChunkSize && m.contents.SupportsChunked(name)
	if large && !chunked {
		return nil, ErrFileTooLarge
	}
	if large {
		if err := m.confirmLargeFile(ctx, name, size); err != nil {
			return nil, err
		}
		if err := m.checkDisposed(); err != nil {
			return nil, err
		}
	}

	// Refresh so the collision check runs against the server's current
	// listing, not a stale cache.
	if err := m.ChangeDirectory(ctx, "."); err != nil {
		return nil, err
	}
	if err := m.checkDisposed(); err != nil {
		return nil, err
	}

	if m.hasEntry(name) {
		if err := m.confirmOverwrite(ctx, name); err != nil {
			return nil, err
		}
		if err := m.checkDisposed(); err != nil {
			return nil, err
		}
	}

	dest := contents.ResolvePath(m.Path(), name)

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil, ErrDisposed
	}
	if _, exists := m.uploads[dest]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUploadInProgress, dest)
	}
	u := &Upload{ID: uuid.NewString(), Path: dest}
	m.uploads[dest] = u
	n := len(m.uploads)
	m.mu.Unlock()
	metrics.SetUploadsInFlight(n)

	started := *u
	m.UploadChanged.Emit(UploadChange{Name: "start", New: &started})

	var entry *contents.Entry
	var err error
	mode := "whole"
	if chunked {
		mode = "chunked"
		entry, err = m.uploadChunked(ctx, dest, r, size, u)
	} else {
		entry, err = m.uploadWhole(ctx, dest, r)
	}

	final, inflight := m.finishUpload(dest, err == nil)
	metrics.SetUploadsInFlight(inflight)

	if err != nil {
		if errors.Is(err, ErrDisposed) {
			// Teardown already cleared the tracked uploads; no events.
			return nil, err
		}
		metrics.RecordUpload(mode, 0, false)
		logging.Warn("upload failed",
			logging.String("path", dest), logging.Err(err))
		m.UploadChanged.Emit(UploadChange{Name: "failure", Old: final})
		return nil, err
	}

	metrics.RecordUpload(mode, size, true)
	m.UploadChanged.Emit(UploadChange{Name: "finish", Old: final})

	// Bring the uploaded entry into the cached listing.
	_ = m.ChangeDirectory(ctx, ".")
	return entry, nil
}

// uploadWhole sends the file body as a single base64 save. Retries are
// the client's concern.
func (m *Model) uploadWhole(ctx context.Context, dest string, r io.Reader) (*contents.Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := m.checkDisposed(); err != nil {
		return nil, err
	}
	return m.contents.Save(ctx, dest, contents.SaveRequest{
		Type:    contents.TypeFile,
		Format:  "base64",
		Name:    path.Base(dest),
		Content: base64.StdEncoding.EncodeToString(data),
	})
}

// uploadChunked streams the body in ChunkSize pieces. Chunk indexes are
// 1-based; the terminal piece carries the last flag so the service can
// finalize the file. A failed chunk is never replayed.
func (m *Model) uploadChunked(ctx context.Context, dest string, r io.Reader, size int64, u *Upload) (*contents.Entry, error) {
	buf := make([]byte, ChunkSize)
	var sent int64
	var entry *contents.Entry

	for index := 1; ; index++ {
		if err := m.checkDisposed(); err != nil {
			return nil, err
		}

		n, rerr := io.ReadFull(r, buf)
		if rerr != nil && rerr != io.EOF && rerr != io.ErrUnexpectedEOF {
			return nil, rerr
		}
		if n == 0 {
			return nil, io.ErrUnexpectedEOF
		}
		last := sent+int64(n) >= size || rerr != nil

		if err := m.checkDisposed(); err != nil {
			return nil, err
		}
		e, err := m.contents.Save(ctx, dest, contents.SaveRequest{
			Type:    contents.TypeFile,
			Format:  "base64",
			Name:    path.Base(dest),
			Chunk:   &contents.Chunk{Index: index, Last: last},
			Content: base64.StdEncoding.EncodeToString(buf[:n]),
		})
		if err != nil {
			return nil, err
		}
		entry = e
		sent += int64(n)
		metrics.AddUploadBytes(int64(n))

		if last {
			return entry, nil
		}
		m.reportProgress(u, float64(sent)/float64(size), index)
	}
}

// reportProgress advances the tracked upload and emits one update.
// Progress stays in [0,1); completion is signalled by finish.
func (m *Model) reportProgress(u *Upload, progress float64, chunk int) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	old := *u
	u.Progress = progress
	u.Chunk = chunk
	upd := *u
	m.mu.Unlock()

	m.UploadChanged.Emit(UploadChange{Name: "update", Old: &old, New: &upd})
}

// finishUpload removes the tracked upload and returns its final
// snapshot plus the remaining in-flight count.
func (m *Model) finishUpload(dest string, success bool) (*Upload, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[dest]
	if !ok {
		return nil, len(m.uploads)
	}
	delete(m.uploads, dest)
	u.Done = success
	final := *u
	return &final, len(m.uploads)
}

// hasEntry reports whether the cached listing holds an entry named name.
func (m *Model) hasEntry(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].Name == name {
			return true
		}
	}
	return false
}

func (m *Model) confirmLargeFile(ctx context.Context, name string, size int64) error {
	if m.prompter == nil {
		return nil
	}
	ok, err := m.prompter.ConfirmLargeFile(ctx, name, size)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}

func (m *Model) confirmOverwrite(ctx context.Context, name string) error {
	if m.prompter == nil {
		return nil
	}
	ok, err := m.prompter.ConfirmOverwrite(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotUploaded
	}
	return nil
}
